package chain

import (
	"context"
	"log/slog"
	"time"
)

// Refresher keeps the chain statistics snapshot warm by refreshing it on
// a fixed cadence.
type Refresher struct {
	stats    *Stats
	logger   *slog.Logger
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	started  bool
}

// NewRefresher creates a refresher running Stats.Refresh every interval.
func NewRefresher(stats *Stats, logger *slog.Logger, interval time.Duration) *Refresher {
	return &Refresher{
		stats:    stats,
		logger:   logger,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the refresh loop. Calling Start twice is a no-op.
func (r *Refresher) Start() {
	if r.started {
		return
	}
	r.started = true

	go r.run()
	r.logger.Info("stats refresher started", slog.Duration("interval", r.interval))
}

// Stop halts the loop and waits for an in-flight refresh to finish.
func (r *Refresher) Stop() {
	if !r.started {
		return
	}
	close(r.stop)
	<-r.done
	r.logger.Info("stats refresher stopped")
}

func (r *Refresher) run() {
	defer close(r.done)

	// Warm the cache immediately rather than waiting a full interval.
	r.refresh()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.refresh()
		}
	}
}

func (r *Refresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := r.stats.Refresh(ctx); err != nil {
		r.logger.Error("stats refresh failed", slog.String("error", err.Error()))
	}
}
