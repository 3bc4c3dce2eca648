package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/thechain/chain/internal/metrics"
)

func TestMetrics_Exposition(t *testing.T) {
	t.Parallel()

	rec := metrics.NewInMemory()
	rec.IncTicketIssued()
	rec.IncTicketIssued()
	rec.IncStatsRefresh("remote")
	rec.IncStatsRefresh("local")

	w := httptest.NewRecorder()
	NewMetricsHandler(rec).Metrics(w, httptest.NewRequest(http.MethodGet, "/internal/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()

	if !strings.Contains(body, "thechain_tickets_issued_total 2") {
		t.Errorf("missing issued counter:\n%s", body)
	}
	if !strings.Contains(body, `thechain_stats_refreshes_total{source="local"} 1`) {
		t.Errorf("missing local refresh counter:\n%s", body)
	}
	if !strings.Contains(body, `thechain_stats_refreshes_total{source="remote"} 1`) {
		t.Errorf("missing remote refresh counter:\n%s", body)
	}
}
