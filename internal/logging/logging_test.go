package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	prev := L()
	Replace(zap.New(core))
	t.Cleanup(func() { Replace(prev) })
	return logs
}

func TestTransport_AddsRequestID(t *testing.T) {
	logs := observe(t)

	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-ID")
		w.WriteHeader(http.StatusTeapot)
	}))
	defer ts.Close()

	client := &http.Client{Transport: NewTransport(nil)}
	resp, err := client.Get(ts.URL + "/files")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if got == "" {
		t.Fatal("X-Request-ID not sent")
	}

	done := logs.FilterMessage("request completed").All()
	if len(done) != 1 {
		t.Fatalf("expected 1 completion entry, got %d", len(done))
	}
	fields := done[0].ContextMap()
	if fields["request_id"] != got {
		t.Errorf("request_id = %v, want %s", fields["request_id"], got)
	}
	if fields["status"] != int64(http.StatusTeapot) {
		t.Errorf("status = %v", fields["status"])
	}
	if fields["path"] != "/files" {
		t.Errorf("path = %v", fields["path"])
	}
}

func TestTransport_KeepsContextRequestID(t *testing.T) {
	observe(t)

	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-ID")
	}))
	defer ts.Close()

	ctx := WithRequestID(context.Background(), "req-42")
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
	resp, err := (&http.Client{Transport: NewTransport(http.DefaultTransport)}).Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if got != "req-42" {
		t.Errorf("X-Request-ID = %q, want req-42", got)
	}
	if RequestID(ctx) != "req-42" {
		t.Errorf("RequestID(ctx) = %q", RequestID(ctx))
	}
}

func TestSetLevel(t *testing.T) {
	if err := Init(Config{Level: "info", Format: "json", OutputPath: "stderr"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer SetLevel("info")

	if L().Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("debug enabled at info level")
	}
	SetLevel("debug")
	if !L().Core().Enabled(zapcore.DebugLevel) {
		t.Error("SetLevel(debug) did not take effect")
	}
	SetLevel("bogus")
	if !L().Core().Enabled(zapcore.DebugLevel) {
		t.Error("invalid level changed the level")
	}
}

func TestInit_Rejects(t *testing.T) {
	prev := L()
	t.Cleanup(func() { Replace(prev) })

	if err := Init(Config{Level: "loud"}); err == nil {
		t.Error("unknown level accepted")
	}
	if err := Init(Config{Level: "info", Format: "xml"}); err == nil {
		t.Error("unknown format accepted")
	}
	if err := Init(Config{Level: "error", Format: "console"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if Level() != "error" {
		t.Errorf("Level() = %q, want error", Level())
	}
	SetLevel("info")
}

type statusError struct {
	Message string
	Status  int
}

func (e *statusError) Error() string { return e.Message }

func TestDetails_WalksWrappedAndJoined(t *testing.T) {
	a := &statusError{Message: "files down", Status: 500}
	b := &statusError{Message: "folders down", Status: 502}
	err := fmt.Errorf("load: %w", errors.Join(fmt.Errorf("files: %w", a), errors.New("plain"), b))

	got := Details(err)
	if len(got) != 2 || got[0] != error(a) || got[1] != error(b) {
		t.Fatalf("Details = %v, want [%v %v]", got, a, b)
	}

	if len(Details(errors.New("plain"))) != 0 {
		t.Error("plain error has details")
	}
	if f := ErrDetail(errors.New("plain")); f.Type != zapcore.SkipType {
		t.Errorf("ErrDetail(plain) type = %v, want skip", f.Type)
	}
}

func TestErrDetail_Encoded(t *testing.T) {
	var buf bytes.Buffer
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	prev := L()
	Replace(zap.New(zapcore.NewCore(enc, zapcore.AddSync(&buf), zapcore.DebugLevel)))
	t.Cleanup(func() { Replace(prev) })

	err := fmt.Errorf("failed: %w", errors.Join(&statusError{Message: "boom", Status: 500}))
	Error("load failed", Err(err), ErrDetail(err))

	var entry struct {
		Detail []statusError `json:"error_detail"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if len(entry.Detail) != 1 || entry.Detail[0].Status != 500 || entry.Detail[0].Message != "boom" {
		t.Errorf("error_detail = %+v", entry.Detail)
	}
}

func TestCaller(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := L()
	Replace(zap.New(core, zap.AddCaller()))
	t.Cleanup(func() { Replace(prev) })

	Warn("from a helper")

	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()
	resp, err := (&http.Client{Transport: NewTransport(nil)}).Get(ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	for msg, file := range map[string]string{
		"from a helper":     "logging_test.go",
		"request completed": "transport.go",
	} {
		entries := logs.FilterMessage(msg).All()
		if len(entries) != 1 {
			t.Fatalf("%q: %d entries", msg, len(entries))
		}
		if got := entries[0].Caller.File; !strings.HasSuffix(got, file) {
			t.Errorf("%q logged from %s, want %s", msg, got, file)
		}
	}
}
