package logging

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Transport logs every outgoing request and tags it with an X-Request-ID.
// An id already present on the request or in its context is kept.
type Transport struct {
	Base http.RoundTripper
}

// NewTransport wraps base, or http.DefaultTransport when base is nil.
func NewTransport(base http.RoundTripper) *Transport {
	return &Transport{Base: base}
}

// RoundTrip sends req through Base and logs its outcome at debug level, or
// at warn level when no response arrived.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	requestID := req.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = RequestID(req.Context())
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	ctx := WithRequestID(req.Context(), requestID)
	req = req.Clone(ctx)
	req.Header.Set("X-Request-ID", requestID)

	logger := WithContext(ctx)
	logger.Debug("request started",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
	)

	start := time.Now()
	resp, err := base.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		logger.Warn("request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}

	logger.Debug("request completed",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Int64("size", resp.ContentLength),
		zap.Duration("duration", duration),
	)
	return resp, nil
}
