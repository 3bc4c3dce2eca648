package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/thechain/chain/internal/cache"
	"github.com/thechain/chain/internal/clock"
	"github.com/thechain/chain/internal/metrics"
	"github.com/thechain/chain/internal/model"
	"github.com/thechain/chain/internal/store"
)

const (
	// maxStatsBody caps how much of the remote stats response is read.
	maxStatsBody = 1 << 20 // 1 MB

	dialTimeout           = 2 * time.Second
	responseHeaderTimeout = 2 * time.Second
)

// Refresh sources, reported in logs and metrics.
const (
	SourceRemote = "remote"
	SourceLocal  = "local"
)

// ErrNoSnapshot indicates no statistics snapshot has been published yet.
var ErrNoSnapshot = errors.New("no stats snapshot available")

// StatsClient fetches chain-wide statistics from the remote feed.
type StatsClient struct {
	url    string
	client *http.Client
}

// NewStatsClient creates a client for the stats feed at url. The client
// does not follow redirects and gives up within timeout.
func NewStatsClient(url string, timeout time.Duration) *StatsClient {
	return &StatsClient{
		url: url,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   dialTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ResponseHeaderTimeout: responseHeaderTimeout,
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Fetch retrieves the current chain statistics from the feed.
func (c *StatsClient) Fetch(ctx context.Context) (*model.ChainStats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build stats request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stats feed returned status %d", resp.StatusCode)
	}

	var stats model.ChainStats
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxStatsBody)).Decode(&stats); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return &stats, nil
}

// Stats serves chain-wide statistics. Reads come from the cache; the
// refresher keeps the cache warm from the remote feed, falling back to
// numbers derived from the local store when the feed is unreachable.
type Stats struct {
	store   store.Store
	cache   *cache.Cache
	remote  *StatsClient // nil when no feed is configured
	clock   clock.Clock
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewStats creates a Stats service. remote may be nil, in which case
// every refresh derives the numbers locally.
func NewStats(
	st store.Store,
	ca *cache.Cache,
	remote *StatsClient,
	clk clock.Clock,
	logger *slog.Logger,
	rec metrics.Recorder,
) *Stats {
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &Stats{
		store:   st,
		cache:   ca,
		remote:  remote,
		clock:   clk,
		logger:  logger,
		metrics: rec,
	}
}

// Global returns the latest chain-wide snapshot. Prefers the cached
// snapshot; when the cache is cold it refreshes inline.
func (s *Stats) Global(ctx context.Context) (*model.ChainStats, error) {
	if s.cache != nil {
		if cached, err := s.cache.ChainStats(ctx); err == nil {
			return cached, nil
		}
	}
	return s.Refresh(ctx)
}

// Refresh produces a fresh snapshot and publishes it to the cache. The
// remote feed wins when it answers; otherwise the snapshot is derived
// from the local store, so the endpoint keeps working through feed
// outages.
func (s *Stats) Refresh(ctx context.Context) (*model.ChainStats, error) {
	start := time.Now()
	source := SourceLocal

	stats, err := s.fetchRemote(ctx)
	if err != nil {
		if s.remote != nil {
			s.logger.WarnContext(ctx, "stats feed unavailable, deriving locally",
				slog.String("error", err.Error()),
			)
		}
		stats, err = s.deriveLocal(ctx)
		if err != nil {
			return nil, err
		}
	} else {
		source = SourceRemote
	}

	stats.UpdatedAt = s.clock.Now()

	if s.cache != nil {
		if err := s.cache.SetChainStats(ctx, stats); err != nil {
			s.logger.WarnContext(ctx, "publish stats snapshot failed",
				slog.String("error", err.Error()),
			)
		}
	}

	s.metrics.IncStatsRefresh(source)
	s.metrics.ObserveStatsRefreshDuration(time.Since(start))
	s.logger.DebugContext(ctx, "stats refreshed",
		slog.String("source", source),
		slog.Int("total_users", stats.TotalUsers),
	)
	return stats, nil
}

func (s *Stats) fetchRemote(ctx context.Context) (*model.ChainStats, error) {
	if s.remote == nil {
		return nil, ErrNoSnapshot
	}
	return s.remote.Fetch(ctx)
}

// deriveLocal computes the snapshot from the store: membership count,
// live tickets, and growth as members per day since the seed joined.
// Country data needs the remote feed; locally it reports zero.
func (s *Stats) deriveLocal(ctx context.Context) (*model.ChainStats, error) {
	total, err := s.store.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	active, err := s.store.CountActiveTickets(ctx)
	if err != nil {
		return nil, fmt.Errorf("count active tickets: %w", err)
	}

	earliest, err := s.store.EarliestJoin(ctx)
	if err != nil {
		return nil, fmt.Errorf("earliest join: %w", err)
	}

	return &model.ChainStats{
		TotalUsers:        total,
		ActiveTickets:     active,
		AverageGrowthRate: growthRate(total, earliest, s.clock.Now()),
		Countries:         0,
	}, nil
}
