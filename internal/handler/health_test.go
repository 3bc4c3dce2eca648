package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeChecker struct {
	err error
}

func (f fakeChecker) Ping(ctx context.Context) error { return f.err }

func TestHealthz(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(nil, nil)

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestReadyz_AllHealthy(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(fakeChecker{}, fakeChecker{})

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" || resp.Checks["store"] != "ok" || resp.Checks["redis"] != "ok" {
		t.Errorf("response = %+v", resp)
	}
}

func TestReadyz_StoreDown(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(fakeChecker{err: errors.New("connection refused")}, fakeChecker{})

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewMetricsHandler(nil).Metrics(rec, httptest.NewRequest(http.MethodGet, "/internal/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("nil snapshotter status = %d, want 503", rec.Code)
	}
}
