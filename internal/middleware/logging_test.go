package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLogger_CapturesStatus(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log entry not JSON: %v", err)
	}
	if entry["status_code"] != float64(404) {
		t.Errorf("status_code = %v, want 404", entry["status_code"])
	}
	if entry["level"] != "WARN" {
		t.Errorf("4xx should log at WARN, got %v", entry["level"])
	}
	if entry["path"] != "/missing" {
		t.Errorf("path = %v", entry["path"])
	}
}

func TestLogger_ServerErrorsLogAtError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log entry not JSON: %v", err)
	}
	if entry["level"] != "ERROR" {
		t.Errorf("5xx should log at ERROR, got %v", entry["level"])
	}
}

func TestResponseWriter_ImplicitOK(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := wrapResponseWriter(rec)

	if _, err := rw.Write([]byte("hello")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if rw.status != http.StatusOK {
		t.Errorf("implicit status = %d, want 200", rw.status)
	}

	// A later WriteHeader call must not overwrite the recorded status.
	rw.WriteHeader(http.StatusTeapot)
	if rw.status != http.StatusOK {
		t.Errorf("status after late WriteHeader = %d, want 200", rw.status)
	}
}
