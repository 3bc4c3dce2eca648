// Package ticket implements the invitation ticket lifecycle: issue,
// cancel, redeem, and deadline-driven expiry.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/thechain/chain/internal/auth"
	"github.com/thechain/chain/internal/clock"
	"github.com/thechain/chain/internal/metrics"
	"github.com/thechain/chain/internal/model"
	"github.com/thechain/chain/internal/store"
)

// Common errors for ticket operations.
var (
	// ErrActiveTicketExists indicates the owner already holds an active ticket.
	ErrActiveTicketExists = errors.New("an active ticket already exists")
	// ErrNoActiveTicket indicates the owner has no active ticket to act on.
	ErrNoActiveTicket = errors.New("no active ticket")
	// ErrInvalidOrExpiredCode indicates the presented code does not name a
	// redeemable ticket. Unknown, expired, cancelled and already-redeemed
	// codes are deliberately indistinguishable to the caller.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired ticket code")
)

// expiryBatchSize bounds how many overdue tickets a single sweep
// transition pass will touch.
const expiryBatchSize = 500

// Service manages the ticket lifecycle. All deadline checks go through
// the injected clock, so expiry is testable without waiting.
type Service struct {
	store   store.Store
	clock   clock.Clock
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewService creates a ticket Service.
func NewService(st store.Store, clk clock.Clock, logger *slog.Logger, rec metrics.Recorder) *Service {
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &Service{
		store:   st,
		clock:   clk,
		logger:  logger,
		metrics: rec,
	}
}

// Issue creates a new active ticket for ownerID with a fixed 24h
// deadline. At most one active ticket may exist per owner; issuing
// while one is live returns ErrActiveTicketExists.
func (s *Service) Issue(ctx context.Context, ownerID string) (*model.Ticket, error) {
	active, err := s.Active(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrActiveTicketExists
	}

	code, err := auth.GenerateTicketCode()
	if err != nil {
		return nil, fmt.Errorf("generate ticket code: %w", err)
	}

	now := s.clock.Now()
	ticket := &model.Ticket{
		ID:        auth.NewEntityID(now),
		OwnerID:   ownerID,
		Code:      code,
		Status:    model.TicketStatusActive,
		CreatedAt: now,
		ExpiresAt: now.Add(model.TicketTTL),
	}

	if err := s.store.CreateTicket(ctx, ticket); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	s.metrics.IncTicketIssued()
	s.logger.InfoContext(ctx, "ticket issued",
		slog.String("ticket_id", ticket.ID),
		slog.String("owner_id", ownerID),
		slog.Time("expires_at", ticket.ExpiresAt),
	)
	return ticket, nil
}

// Active returns the owner's current active ticket, or nil when there is
// none. A ticket whose deadline has passed is expired on read before the
// answer is given, so callers never observe an overdue ticket as active.
func (s *Service) Active(ctx context.Context, ownerID string) (*model.Ticket, error) {
	tickets, err := s.store.TicketsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}

	now := s.clock.Now()
	for _, t := range tickets {
		if t.Status != model.TicketStatusActive {
			continue
		}
		if t.PastDue(now) {
			s.expireLazily(ctx, t)
			continue
		}
		return t, nil
	}
	return nil, nil
}

// Cancel voids the owner's active ticket. Returns ErrNoActiveTicket when
// there is nothing to cancel, including when the ticket just expired.
func (s *Service) Cancel(ctx context.Context, ownerID string) (*model.Ticket, error) {
	active, err := s.Active(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, ErrNoActiveTicket
	}

	cancelled, err := s.store.TransitionTicket(ctx, active.ID, model.TicketStatusActive, model.TicketStatusCancelled)
	if err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			// Lost the race against the sweeper or a redemption.
			return nil, ErrNoActiveTicket
		}
		return nil, fmt.Errorf("cancel ticket: %w", err)
	}

	s.metrics.IncTicketCancelled()
	s.logger.InfoContext(ctx, "ticket cancelled",
		slog.String("ticket_id", cancelled.ID),
		slog.String("owner_id", ownerID),
	)
	return cancelled, nil
}

// Redeem resolves a ticket code to a live, claimable ticket. It does not
// consume the ticket; the caller finalizes with MarkRedeemed once the
// new member exists. Codes that are unknown, malformed, or name a
// non-active or overdue ticket all return ErrInvalidOrExpiredCode.
func (s *Service) Redeem(ctx context.Context, code string) (*model.Ticket, error) {
	if !auth.ValidTicketCode(code) {
		return nil, ErrInvalidOrExpiredCode
	}

	ticket, err := s.store.TicketByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrTicketNotFound) {
			return nil, ErrInvalidOrExpiredCode
		}
		return nil, fmt.Errorf("lookup ticket: %w", err)
	}

	if ticket.Status != model.TicketStatusActive {
		return nil, ErrInvalidOrExpiredCode
	}
	if ticket.PastDue(s.clock.Now()) {
		s.expireLazily(ctx, ticket)
		return nil, ErrInvalidOrExpiredCode
	}
	return ticket, nil
}

// MarkRedeemed consumes a ticket on behalf of the newly joined member.
// A ticket can be consumed exactly once; a second attempt fails.
func (s *Service) MarkRedeemed(ctx context.Context, ticketID, claimedBy string) (*model.Ticket, error) {
	redeemed, err := s.store.RedeemTicket(ctx, ticketID, claimedBy, s.clock.Now())
	if err != nil {
		if errors.Is(err, store.ErrStatusConflict) || errors.Is(err, store.ErrTicketNotFound) {
			return nil, ErrInvalidOrExpiredCode
		}
		return nil, fmt.Errorf("redeem ticket: %w", err)
	}

	s.metrics.IncTicketRedeemed()
	s.logger.InfoContext(ctx, "ticket redeemed",
		slog.String("ticket_id", redeemed.ID),
		slog.String("claimed_by", claimedBy),
	)
	return redeemed, nil
}

// ExpireDue transitions every active ticket whose deadline has passed to
// expired, and returns how many it moved. Running it twice over the same
// instant is harmless: the guarded transition skips tickets another pass
// already moved.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	due, err := s.store.ActiveTicketsDueBefore(ctx, now, expiryBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list due tickets: %w", err)
	}

	expired := 0
	for _, t := range due {
		if _, err := s.store.TransitionTicket(ctx, t.ID, model.TicketStatusActive, model.TicketStatusExpired); err != nil {
			if errors.Is(err, store.ErrStatusConflict) || errors.Is(err, store.ErrTicketNotFound) {
				continue
			}
			return expired, fmt.Errorf("expire ticket %s: %w", t.ID, err)
		}
		expired++
	}

	if expired > 0 {
		s.metrics.AddTicketsExpired(expired)
		s.logger.InfoContext(ctx, "tickets expired",
			slog.Int("count", expired),
			slog.Time("cutoff", now),
		)
	}
	return expired, nil
}

// History lists the owner's tickets, newest first.
func (s *Service) History(ctx context.Context, ownerID string) ([]*model.Ticket, error) {
	tickets, err := s.store.TicketsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, nil
}

func (s *Service) expireLazily(ctx context.Context, t *model.Ticket) {
	_, err := s.store.TransitionTicket(ctx, t.ID, model.TicketStatusActive, model.TicketStatusExpired)
	switch {
	case err == nil:
		s.metrics.AddTicketsExpired(1)
		s.logger.InfoContext(ctx, "ticket expired on read",
			slog.String("ticket_id", t.ID),
			slog.String("owner_id", t.OwnerID),
		)
	case errors.Is(err, store.ErrStatusConflict), errors.Is(err, store.ErrTicketNotFound):
		// Someone else moved it first.
	default:
		s.logger.WarnContext(ctx, "lazy expiry failed",
			slog.String("ticket_id", t.ID),
			slog.String("error", err.Error()),
		)
	}
}
