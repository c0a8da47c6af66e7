package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrumentTransport(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	before := testutil.ToFloat64(apiRequestsTotal.WithLabelValues("get", "404"))

	client := &http.Client{Transport: InstrumentTransport(nil)}
	resp, err := client.Get(ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if got := testutil.ToFloat64(apiRequestsTotal.WithLabelValues("get", "404")); got != before+1 {
		t.Errorf("requests_total = %v, want %v", got, before+1)
	}
	if got := testutil.ToFloat64(apiRequestsInFlight); got != 0 {
		t.Errorf("in flight = %v, want 0", got)
	}
}

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(starTogglesTotal.WithLabelValues("starred"))
	RecordStarToggle(true)
	if got := testutil.ToFloat64(starTogglesTotal.WithLabelValues("starred")); got != before+1 {
		t.Errorf("star toggles = %v, want %v", got, before+1)
	}

	SetViewItems("trash", 4, 2)
	if got := testutil.ToFloat64(viewItems.WithLabelValues("trash", "folder")); got != 2 {
		t.Errorf("trash folders = %v, want 2", got)
	}

	fb := testutil.ToFloat64(loadFallbacksTotal.WithLabelValues("folders"))
	RecordFallback("folders")
	if got := testutil.ToFloat64(loadFallbacksTotal.WithLabelValues("folders")); got != fb+1 {
		t.Errorf("fallbacks = %v, want %v", got, fb+1)
	}

	up := testutil.ToFloat64(uploadBytesTotal)
	RecordUpload(-5)
	RecordUpload(10)
	if got := testutil.ToFloat64(uploadBytesTotal); got != up+10 {
		t.Errorf("upload bytes = %v, want %v", got, up+10)
	}
}

func TestHandler(t *testing.T) {
	RecordAPIError("network")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "webdrive_api_errors_total") {
		t.Error("metrics output missing webdrive_api_errors_total")
	}
}
