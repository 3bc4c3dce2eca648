package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/thechain/chain/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "thechain_users_registered_total %d\n", snap.UsersRegistered)
	writeMetric(w, "thechain_logins_total{status=\"success\"} %d\n", snap.LoginSuccesses)
	writeMetric(w, "thechain_logins_total{status=\"failure\"} %d\n", snap.LoginFailures)

	writeMetric(w, "thechain_tickets_issued_total %d\n", snap.TicketsIssued)
	writeMetric(w, "thechain_tickets_cancelled_total %d\n", snap.TicketsCancelled)
	writeMetric(w, "thechain_tickets_redeemed_total %d\n", snap.TicketsRedeemed)
	writeMetric(w, "thechain_tickets_expired_total %d\n", snap.TicketsExpired)

	// Deterministic label order for scrapers and tests.
	sources := make([]string, 0, len(snap.StatsRefreshes))
	for source := range snap.StatsRefreshes {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	for _, source := range sources {
		writeMetric(w, "thechain_stats_refreshes_total{source=%q} %d\n", source, snap.StatsRefreshes[source])
	}
	writeMetric(w, "thechain_stats_refresh_duration_seconds_sum %.6f\n", snap.StatsRefreshSecondsTotal)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
