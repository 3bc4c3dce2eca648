package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/thechain/chain/internal/model"
	"github.com/thechain/chain/internal/store"
	"github.com/thechain/chain/internal/testutil"
)

// newIntegrationStore connects to TEST_DATABASE_URL and resets the
// schema. Skips when the variable is not set.
func newIntegrationStore(t *testing.T) *store.Postgres {
	t.Helper()

	databaseURL := testutil.RequireEnv(t, "TEST_DATABASE_URL")
	ctx := context.Background()

	pg, err := store.NewPostgres(ctx, databaseURL)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(func() { _ = pg.Close() })

	unlock, err := testutil.AcquireDBLock(ctx, pg.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() { _ = unlock() })

	if err := testutil.ResetSchema(ctx, pg.Pool()); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	return pg
}

func TestPostgres_UserRoundTrip(t *testing.T) {
	pg := newIntegrationStore(t)
	ctx := context.Background()

	u := testutil.NewTestUser(t, 1)
	if err := pg.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := pg.UserByEmail(ctx, u.Email)
	if err != nil {
		t.Fatalf("UserByEmail failed: %v", err)
	}
	if got.ID != u.ID || got.ChainKey != u.ChainKey || got.Position != u.Position {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.JoinedAt.Equal(u.JoinedAt) {
		t.Errorf("JoinedAt = %s, want %s", got.JoinedAt, u.JoinedAt)
	}

	// Unique constraints map onto the sentinel errors.
	dup := testutil.NewTestUser(t, 2)
	dup.Email = u.Email
	if err := pg.CreateUser(ctx, dup); !errors.Is(err, store.ErrEmailExists) {
		t.Errorf("duplicate email: got %v, want ErrEmailExists", err)
	}

	dup = testutil.NewTestUser(t, 2)
	dup.ChainKey = u.ChainKey
	if err := pg.CreateUser(ctx, dup); !errors.Is(err, store.ErrChainKeyExists) {
		t.Errorf("duplicate chain key: got %v, want ErrChainKeyExists", err)
	}

	dup = testutil.NewTestUser(t, 2)
	dup.Position = u.Position
	if err := pg.CreateUser(ctx, dup); !errors.Is(err, store.ErrPositionExists) {
		t.Errorf("duplicate position: got %v, want ErrPositionExists", err)
	}
}

func TestPostgres_ChildrenOrdering(t *testing.T) {
	pg := newIntegrationStore(t)
	ctx := context.Background()

	parent := testutil.NewTestUser(t, 1)
	if err := pg.CreateUser(ctx, parent); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	for _, pos := range []int{4, 2, 3} {
		child := testutil.NewTestUser(t, pos)
		child.ParentID = &parent.ID
		if err := pg.CreateUser(ctx, child); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}

	children, err := pg.Children(ctx, parent.ID)
	if err != nil {
		t.Fatalf("Children failed: %v", err)
	}
	if len(children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(children))
	}
	for i, want := range []int{2, 3, 4} {
		if children[i].Position != want {
			t.Errorf("children[%d].Position = %d, want %d", i, children[i].Position, want)
		}
	}
}

func TestPostgres_TicketLifecycle(t *testing.T) {
	pg := newIntegrationStore(t)
	ctx := context.Background()

	owner := testutil.NewTestUser(t, 1)
	claimer := testutil.NewTestUser(t, 2)
	if err := pg.CreateUser(ctx, owner); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := pg.CreateUser(ctx, claimer); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	ticket := testutil.NewTestTicket(t, owner.ID, 1)
	if err := pg.CreateTicket(ctx, ticket); err != nil {
		t.Fatalf("CreateTicket failed: %v", err)
	}

	dup := testutil.NewTestTicket(t, owner.ID, 2)
	dup.Code = ticket.Code
	if err := pg.CreateTicket(ctx, dup); !errors.Is(err, store.ErrCodeExists) {
		t.Errorf("duplicate code: got %v, want ErrCodeExists", err)
	}

	count, err := pg.CountActiveTickets(ctx)
	if err != nil || count != 1 {
		t.Errorf("CountActiveTickets = %d, %v", count, err)
	}

	claimedAt := ticket.CreatedAt.Add(time.Hour)
	redeemed, err := pg.RedeemTicket(ctx, ticket.ID, claimer.ID, claimedAt)
	if err != nil {
		t.Fatalf("RedeemTicket failed: %v", err)
	}
	if redeemed.Status != model.TicketStatusRedeemed {
		t.Errorf("status = %s, want redeemed", redeemed.Status)
	}
	if redeemed.ClaimedBy == nil || *redeemed.ClaimedBy != claimer.ID {
		t.Error("ClaimedBy not persisted")
	}
	if redeemed.ClaimedAt == nil || !redeemed.ClaimedAt.Equal(claimedAt) {
		t.Error("ClaimedAt not persisted")
	}

	// The guarded transition refuses a second consumption.
	if _, err := pg.RedeemTicket(ctx, ticket.ID, owner.ID, claimedAt); !errors.Is(err, store.ErrStatusConflict) {
		t.Errorf("second redemption: got %v, want ErrStatusConflict", err)
	}
	if _, err := pg.TransitionTicket(ctx, ticket.ID, model.TicketStatusActive, model.TicketStatusExpired); !errors.Is(err, store.ErrStatusConflict) {
		t.Errorf("expire after redeem: got %v, want ErrStatusConflict", err)
	}
	if _, err := pg.TransitionTicket(ctx, "missing", model.TicketStatusActive, model.TicketStatusExpired); !errors.Is(err, store.ErrTicketNotFound) {
		t.Errorf("missing ticket: got %v, want ErrTicketNotFound", err)
	}
}

func TestPostgres_ActiveTicketsDueBefore(t *testing.T) {
	pg := newIntegrationStore(t)
	ctx := context.Background()

	owner := testutil.NewTestUser(t, 1)
	if err := pg.CreateUser(ctx, owner); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	for n := 1; n <= 3; n++ {
		if err := pg.CreateTicket(ctx, testutil.NewTestTicket(t, owner.ID, n)); err != nil {
			t.Fatalf("CreateTicket failed: %v", err)
		}
	}

	cutoff := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC).Add(2*time.Hour + model.TicketTTL)
	due, err := pg.ActiveTicketsDueBefore(ctx, cutoff, 10)
	if err != nil {
		t.Fatalf("ActiveTicketsDueBefore failed: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due tickets, got %d", len(due))
	}
	if !due[0].ExpiresAt.Before(due[1].ExpiresAt) {
		t.Error("due tickets should be ordered by deadline")
	}

	limited, err := pg.ActiveTicketsDueBefore(ctx, cutoff, 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("limited query = %d tickets, %v", len(limited), err)
	}
}

func TestPostgres_EarliestJoin_EmptyTable(t *testing.T) {
	pg := newIntegrationStore(t)
	ctx := context.Background()

	earliest, err := pg.EarliestJoin(ctx)
	if err != nil {
		t.Fatalf("EarliestJoin failed: %v", err)
	}
	if !earliest.IsZero() {
		t.Errorf("empty table earliest = %s, want zero time", earliest)
	}
}
