// Package testutil provides helpers for integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thechain/chain/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 240240

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema drops and recreates the users and tickets schema for tests.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	// Tickets reference users, so they go down first and up last.
	steps := []string{
		filepath.Join(root, "migrations", "000002_tickets.down.sql"),
		filepath.Join(root, "migrations", "000001_users.down.sql"),
		filepath.Join(root, "migrations", "000001_users.up.sql"),
		filepath.Join(root, "migrations", "000002_tickets.up.sql"),
	}

	for _, path := range steps {
		sql, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", filepath.Base(path), err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %s: %w", filepath.Base(path), err)
		}
	}

	return nil
}

// ProjectRoot resolves the repository root from this file's location.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// NewTestUser creates a user with sensible defaults for store tests.
func NewTestUser(t testing.TB, position int) *model.User {
	t.Helper()

	return &model.User{
		ID:           fmt.Sprintf("user-%03d", position),
		Email:        fmt.Sprintf("user%03d@example.com", position),
		DisplayName:  fmt.Sprintf("User %03d", position),
		ChainKey:     fmt.Sprintf("ABCDEF%06d", position),
		Position:     position,
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=4$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g",
		JoinedAt:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, position),
	}
}

// NewTestTicket creates an active ticket owned by ownerID.
func NewTestTicket(t testing.TB, ownerID string, n int) *model.Ticket {
	t.Helper()

	createdAt := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Hour)
	return &model.Ticket{
		ID:        fmt.Sprintf("ticket-%s-%03d", ownerID, n),
		OwnerID:   ownerID,
		Code:      fmt.Sprintf("TICKET-TEST%s%03d", ownerID, n),
		Status:    model.TicketStatusActive,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(model.TicketTTL),
	}
}
