package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thechain/chain/internal/model"
)

const (
	// statsKey is the Redis key holding the latest chain statistics.
	statsKey = "chain:stats"
	// statsTTL caps how stale a cached snapshot can get if the
	// refresher stops running.
	statsTTL = 10 * time.Minute
)

// SetChainStats caches a chain statistics snapshot.
func (c *Cache) SetChainStats(ctx context.Context, stats *model.ChainStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal chain stats: %w", err)
	}
	if err := c.client.Set(ctx, statsKey, data, statsTTL).Err(); err != nil {
		return fmt.Errorf("set chain stats: %w", err)
	}
	return nil
}

// ChainStats returns the cached statistics snapshot, or ErrCacheMiss
// when none has been published yet.
func (c *Cache) ChainStats(ctx context.Context) (*model.ChainStats, error) {
	data, err := c.client.Get(ctx, statsKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("get chain stats: %w", err)
	}

	var stats model.ChainStats
	if err := json.Unmarshal(data, &stats); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, ErrCacheMiss
	}
	return &stats, nil
}
