package chain

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/thechain/chain/internal/clock"
	"github.com/thechain/chain/internal/metrics"
	"github.com/thechain/chain/internal/model"
	"github.com/thechain/chain/internal/store"
	"github.com/thechain/chain/internal/ticket"
)

func newViewFixture(t *testing.T) (*View, *ticket.Service, *store.Memory, *clock.Fake) {
	t.Helper()

	st := store.NewMemory()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tickets := ticket.NewService(st, clk, logger, metrics.Noop{})
	return NewView(st, tickets, clk), tickets, st, clk
}

func addUser(t *testing.T, st *store.Memory, id string, position int, parentID *string, joinedAt time.Time) *model.User {
	t.Helper()

	u := &model.User{
		ID:          id,
		Email:       id + "@example.com",
		DisplayName: id,
		ChainKey:    "KEY" + id,
		Position:    position,
		ParentID:    parentID,
		JoinedAt:    joinedAt,
	}
	if err := st.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return u
}

func TestView_Children(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	view, _, st, clk := newViewFixture(t)

	parent := addUser(t, st, "parent", 1, nil, clk.Now())
	addUser(t, st, "late", 3, &parent.ID, clk.Now())
	addUser(t, st, "early", 2, &parent.ID, clk.Now())

	children, err := view.Children(ctx, parent.ID)
	if err != nil {
		t.Fatalf("Children failed: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
	if children[0].ID != "early" || children[1].ID != "late" {
		t.Errorf("children not in join order: %s, %s", children[0].ID, children[1].ID)
	}

	none, err := view.Children(ctx, "late")
	if err != nil {
		t.Fatalf("Children failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("leaf member should have no children, got %d", len(none))
	}
}

func TestView_StatsFor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	view, tickets, st, clk := newViewFixture(t)

	parent := addUser(t, st, "parent", 1, nil, clk.Now())
	addUser(t, st, "child", 2, &parent.ID, clk.Now())

	// One consumed ticket, then a live one.
	first, err := tickets.Issue(ctx, parent.ID)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := tickets.MarkRedeemed(ctx, first.ID, "child"); err != nil {
		t.Fatalf("MarkRedeemed failed: %v", err)
	}
	if _, err := tickets.Issue(ctx, parent.ID); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	clk.Advance(2 * time.Hour)

	stats, err := view.StatsFor(ctx, parent.ID)
	if err != nil {
		t.Fatalf("StatsFor failed: %v", err)
	}
	if stats.TicketCount != 2 {
		t.Errorf("TicketCount = %d, want 2", stats.TicketCount)
	}
	if stats.InviteCount != 1 {
		t.Errorf("InviteCount = %d, want 1", stats.InviteCount)
	}
	if stats.ActiveTicketRemaining == nil {
		t.Fatal("expected remaining time on the live ticket")
	}
	if got := *stats.ActiveTicketRemaining; got != model.TicketTTL-2*time.Hour {
		t.Errorf("remaining = %s, want %s", got, model.TicketTTL-2*time.Hour)
	}

	// Past the deadline the live ticket drops out of the stats.
	clk.Advance(model.TicketTTL)
	stats, err = view.StatsFor(ctx, parent.ID)
	if err != nil {
		t.Fatalf("StatsFor failed: %v", err)
	}
	if stats.ActiveTicketRemaining != nil {
		t.Error("overdue ticket should not report remaining time")
	}
}

func TestGrowthRate(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		total    int
		earliest time.Time
		want     float64
	}{
		{"empty chain", 0, time.Time{}, 0},
		{"no seed time", 5, time.Time{}, 0},
		{"ten days", 20, now.AddDate(0, 0, -10), 2},
		{"younger than a day", 5, now.Add(-time.Hour), 5},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := growthRate(tt.total, tt.earliest, now); got != tt.want {
				t.Errorf("growthRate = %f, want %f", got, tt.want)
			}
		})
	}
}
