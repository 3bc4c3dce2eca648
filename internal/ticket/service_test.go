package ticket

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/thechain/chain/internal/clock"
	"github.com/thechain/chain/internal/metrics"
	"github.com/thechain/chain/internal/model"
	"github.com/thechain/chain/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.Memory, *clock.Fake) {
	t.Helper()

	st := store.NewMemory()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(st, clk, logger, metrics.Noop{}), st, clk
}

func TestService_Issue_SingleActivePerOwner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newTestService(t)

	first, err := svc.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if first.Status != model.TicketStatusActive {
		t.Errorf("status = %s, want active", first.Status)
	}
	if got := first.ExpiresAt.Sub(first.CreatedAt); got != model.TicketTTL {
		t.Errorf("ticket lifetime = %s, want %s", got, model.TicketTTL)
	}

	if _, err := svc.Issue(ctx, "user-1"); !errors.Is(err, ErrActiveTicketExists) {
		t.Errorf("second issue: got %v, want ErrActiveTicketExists", err)
	}

	// A different owner is unaffected.
	if _, err := svc.Issue(ctx, "user-2"); err != nil {
		t.Errorf("issue for other owner failed: %v", err)
	}
}

func TestService_Cancel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newTestService(t)

	if _, err := svc.Cancel(ctx, "user-1"); !errors.Is(err, ErrNoActiveTicket) {
		t.Errorf("cancel with no ticket: got %v, want ErrNoActiveTicket", err)
	}

	issued, err := svc.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	cancelled, err := svc.Cancel(ctx, "user-1")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled.ID != issued.ID || cancelled.Status != model.TicketStatusCancelled {
		t.Errorf("cancelled = %+v", cancelled)
	}

	// Cancelling frees the slot for a new issue.
	if _, err := svc.Issue(ctx, "user-1"); err != nil {
		t.Errorf("issue after cancel failed: %v", err)
	}
}

func TestService_Active_LazyExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, st, clk := newTestService(t)

	issued, err := svc.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// One second before the deadline the ticket is still active.
	clk.Advance(model.TicketTTL - time.Second)
	active, err := svc.Active(ctx, "user-1")
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if active == nil || active.ID != issued.ID {
		t.Fatalf("expected active ticket before deadline, got %v", active)
	}

	// At the deadline the ticket expires on read.
	clk.Advance(time.Second)
	active, err = svc.Active(ctx, "user-1")
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if active != nil {
		t.Fatalf("expected no active ticket at deadline, got %+v", active)
	}

	// The expiry is persisted, not just filtered from the answer.
	stored, err := st.TicketByCode(ctx, issued.Code)
	if err != nil {
		t.Fatalf("TicketByCode failed: %v", err)
	}
	if stored.Status != model.TicketStatusExpired {
		t.Errorf("stored status = %s, want expired", stored.Status)
	}

	// An expired ticket never becomes active again, even if the clock
	// were to drift backwards.
	clk.Set(issued.CreatedAt)
	active, err = svc.Active(ctx, "user-1")
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if active != nil {
		t.Error("expired ticket resurrected after clock rollback")
	}

	// The slot is free again.
	clk.Set(issued.ExpiresAt.Add(time.Hour))
	if _, err := svc.Issue(ctx, "user-1"); err != nil {
		t.Errorf("issue after expiry failed: %v", err)
	}
}

func TestService_Redeem(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, clk := newTestService(t)

	issued, err := svc.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	ticket, err := svc.Redeem(ctx, issued.Code)
	if err != nil {
		t.Fatalf("Redeem failed: %v", err)
	}
	if ticket.ID != issued.ID {
		t.Errorf("redeemed wrong ticket: %s", ticket.ID)
	}

	// Unknown and malformed codes are indistinguishable.
	if _, err := svc.Redeem(ctx, "not-a-code"); !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Errorf("malformed code: got %v, want ErrInvalidOrExpiredCode", err)
	}

	// Consuming the ticket makes the code dead.
	if _, err := svc.MarkRedeemed(ctx, issued.ID, "user-2"); err != nil {
		t.Fatalf("MarkRedeemed failed: %v", err)
	}
	if _, err := svc.Redeem(ctx, issued.Code); !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Errorf("redeem after consumption: got %v, want ErrInvalidOrExpiredCode", err)
	}
	if _, err := svc.MarkRedeemed(ctx, issued.ID, "user-3"); !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Errorf("second consumption: got %v, want ErrInvalidOrExpiredCode", err)
	}

	// An overdue code cannot be redeemed.
	second, err := svc.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	clk.Advance(model.TicketTTL + time.Second)
	if _, err := svc.Redeem(ctx, second.Code); !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Errorf("redeem past deadline: got %v, want ErrInvalidOrExpiredCode", err)
	}
}

func TestService_Redeem_CancelledCode(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newTestService(t)

	issued, err := svc.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := svc.Cancel(ctx, "user-1"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	if _, err := svc.Redeem(ctx, issued.Code); !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Errorf("redeem cancelled code: got %v, want ErrInvalidOrExpiredCode", err)
	}
}

func TestService_ExpireDue_Idempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, clk := newTestService(t)

	for _, owner := range []string{"user-1", "user-2", "user-3"} {
		if _, err := svc.Issue(ctx, owner); err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
	}

	// Nothing is due yet.
	n, err := svc.ExpireDue(ctx)
	if err != nil {
		t.Fatalf("ExpireDue failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expired %d tickets before deadline, want 0", n)
	}

	clk.Advance(model.TicketTTL)
	n, err = svc.ExpireDue(ctx)
	if err != nil {
		t.Fatalf("ExpireDue failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expired %d tickets, want 3", n)
	}

	// A second pass over the same instant moves nothing.
	n, err = svc.ExpireDue(ctx)
	if err != nil {
		t.Fatalf("ExpireDue failed: %v", err)
	}
	if n != 0 {
		t.Errorf("second pass expired %d tickets, want 0", n)
	}
}

func TestService_History_NewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, clk := newTestService(t)

	first, err := svc.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := svc.Cancel(ctx, "user-1"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	clk.Advance(time.Hour)
	second, err := svc.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	history, err := svc.History(ctx, "user-1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 tickets, got %d", len(history))
	}
	if history[0].ID != second.ID || history[1].ID != first.ID {
		t.Errorf("history not newest first: %s, %s", history[0].ID, history[1].ID)
	}
}
