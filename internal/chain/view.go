// Package chain exposes read views over the invitation chain: a
// member's direct invites, per-member statistics and chain-wide
// statistics with a remote feed and a local fallback.
package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/thechain/chain/internal/clock"
	"github.com/thechain/chain/internal/model"
	"github.com/thechain/chain/internal/store"
	"github.com/thechain/chain/internal/ticket"
)

// View answers per-member questions about the chain.
type View struct {
	store   store.Store
	tickets *ticket.Service
	clock   clock.Clock
}

// NewView creates a chain View.
func NewView(st store.Store, tickets *ticket.Service, clk clock.Clock) *View {
	return &View{store: st, tickets: tickets, clock: clk}
}

// Children lists the members a user invited, ordered by join position.
func (v *View) Children(ctx context.Context, userID string) ([]*model.User, error) {
	children, err := v.store.Children(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return children, nil
}

// StatsFor aggregates a member's personal numbers: tickets ever issued,
// members admitted, and the time left on the active ticket if one is
// live. The active-ticket check goes through the lifecycle service, so
// an overdue ticket expires rather than leaking into the answer.
func (v *View) StatsFor(ctx context.Context, userID string) (*model.MemberStats, error) {
	history, err := v.tickets.History(ctx, userID)
	if err != nil {
		return nil, err
	}

	children, err := v.store.Children(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}

	stats := &model.MemberStats{
		TicketCount: len(history),
		InviteCount: len(children),
	}

	active, err := v.tickets.Active(ctx, userID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		remaining := active.Remaining(v.clock.Now())
		stats.ActiveTicketRemaining = &remaining
	}
	return stats, nil
}

// growthRate computes members per day since the chain began. A chain
// younger than a day reports its total membership as the daily rate.
func growthRate(total int, earliest, now time.Time) float64 {
	if total == 0 || earliest.IsZero() {
		return 0
	}
	days := now.Sub(earliest).Hours() / 24
	if days < 1 {
		days = 1
	}
	return float64(total) / days
}
