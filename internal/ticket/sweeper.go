package ticket

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically expires overdue tickets in the background, so a
// ticket nobody reads still leaves the active state close to its
// deadline.
type Sweeper struct {
	service  *Service
	logger   *slog.Logger
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	started  bool
}

// NewSweeper creates a sweeper running ExpireDue every interval.
func NewSweeper(service *Service, logger *slog.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{
		service:  service,
		logger:   logger,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. Calling Start twice is a no-op.
func (s *Sweeper) Start() {
	if s.started {
		return
	}
	s.started = true

	go s.run()
	s.logger.Info("ticket sweeper started", slog.Duration("interval", s.interval))
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	if !s.started {
		return
	}
	close(s.stop)
	<-s.done
	s.logger.Info("ticket sweeper stopped")
}

func (s *Sweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.service.ExpireDue(ctx); err != nil {
		s.logger.Error("ticket sweep failed", slog.String("error", err.Error()))
	}
}
