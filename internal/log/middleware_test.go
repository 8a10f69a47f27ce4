package log

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := Init(&Config{Level: "info", Format: "text", Output: &buf}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return &buf
}

func TestRequestLogger(t *testing.T) {
	buf := captureLogs(t)

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	req := httptest.NewRequest("GET", "/track?title=x", nil)
	rec := httptest.NewRecorder()
	RequestLogger(testHandler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	output := buf.String()
	for _, want := range []string{"http request", "method=GET", "path=/track", "status=200"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected log to contain %q, got %q", want, output)
		}
	}
}

func TestRequestLogger_ErrorStatus(t *testing.T) {
	buf := captureLogs(t)

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	req := httptest.NewRequest("GET", "/track", nil)
	RequestLogger(testHandler).ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Errorf("expected ERROR level for 500 status, got %q", buf.String())
	}
}

func TestRequestLogger_ClientErrorIsWarn(t *testing.T) {
	buf := captureLogs(t)

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	RequestLogger(testHandler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/track", nil))

	if !strings.Contains(buf.String(), "level=WARN") {
		t.Errorf("expected WARN level for 400 status, got %q", buf.String())
	}
}

func TestGetRequestID(t *testing.T) {
	captureLogs(t)

	var seen string
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	})

	rec := httptest.NewRecorder()
	RequestLogger(testHandler).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if len(seen) != 8 {
		t.Errorf("expected 8-char request ID, got %q", seen)
	}
	if got := rec.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("expected response header %q, got %q", seen, got)
	}
}

func TestRequestLogger_ReusesIncomingID(t *testing.T) {
	captureLogs(t)

	var seen string
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "upstream-id")
	RequestLogger(testHandler).ServeHTTP(httptest.NewRecorder(), req)

	if seen != "upstream-id" {
		t.Errorf("expected incoming request ID, got %q", seen)
	}
}
