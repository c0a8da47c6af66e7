// Package metrics provides Prometheus metrics for the webdrive client.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// API request metrics
	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webdrive_api_requests_total",
			Help: "Total number of API requests sent",
		},
		[]string{"method", "code"},
	)

	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webdrive_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	apiRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "webdrive_api_requests_in_flight",
			Help: "Number of API requests waiting for a response",
		},
	)

	apiErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webdrive_api_errors_total",
			Help: "API errors by class (network, backend, client)",
		},
		[]string{"class"},
	)

	// Dashboard metrics
	loadFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webdrive_load_fallbacks_total",
			Help: "Requests retried with a simpler shape after failing",
		},
		[]string{"request"},
	)

	loadFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webdrive_load_failures_total",
			Help: "View loads that failed entirely",
		},
		[]string{"view"},
	)

	viewItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "webdrive_view_items",
			Help: "Number of items in the last loaded view",
		},
		[]string{"view", "kind"},
	)

	starTogglesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webdrive_star_toggles_total",
			Help: "Star overlay toggles",
		},
		[]string{"state"},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webdrive_upload_bytes_total",
			Help: "Total bytes uploaded",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// InstrumentTransport counts and times every API request sent through base.
func InstrumentTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperInFlight(apiRequestsInFlight,
		promhttp.InstrumentRoundTripperCounter(apiRequestsTotal,
			promhttp.InstrumentRoundTripperDuration(apiRequestDuration, base),
		),
	)
}

// RecordAPIError counts an API error by class.
func RecordAPIError(class string) {
	apiErrorsTotal.WithLabelValues(class).Inc()
}

// RecordFallback counts a request retried without its optional parameters.
func RecordFallback(request string) {
	loadFallbacksTotal.WithLabelValues(request).Inc()
}

// RecordLoadFailure counts a view that could not be loaded at all.
func RecordLoadFailure(view string) {
	loadFailuresTotal.WithLabelValues(view).Inc()
}

// SetViewItems records the size of the last loaded view.
func SetViewItems(view string, files, folders int) {
	viewItems.WithLabelValues(view, "file").Set(float64(files))
	viewItems.WithLabelValues(view, "folder").Set(float64(folders))
}

// RecordStarToggle counts a star overlay toggle.
func RecordStarToggle(starred bool) {
	state := "unstarred"
	if starred {
		state = "starred"
	}
	starTogglesTotal.WithLabelValues(state).Inc()
}

// RecordUpload adds uploaded bytes.
func RecordUpload(bytes int64) {
	if bytes > 0 {
		uploadBytesTotal.Add(float64(bytes))
	}
}
