package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// sessionPrefix is the Redis key prefix for session slots.
//
// Each user owns exactly one slot holding the token ID of their current
// session. A fresh login overwrites the slot, which invalidates the
// previous token the next time it is checked.
const sessionPrefix = "session:"

// SetSession stores the user's current session token ID, replacing any
// previous one.
func (c *Cache) SetSession(ctx context.Context, userID, tokenID string, ttl time.Duration) error {
	if err := c.client.Set(ctx, sessionPrefix+userID, tokenID, ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

// SessionID returns the token ID occupying the user's session slot.
// Returns ErrCacheMiss when the user has no live session.
func (c *Cache) SessionID(ctx context.Context, userID string) (string, error) {
	tokenID, err := c.client.Get(ctx, sessionPrefix+userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", fmt.Errorf("get session: %w", err)
	}
	return tokenID, nil
}

// DeleteSession clears the user's session slot. Deleting an empty slot
// is not an error.
func (c *Cache) DeleteSession(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, sessionPrefix+userID).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
