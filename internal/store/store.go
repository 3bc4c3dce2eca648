// Package store provides the persistence layer for users and tickets.
//
// Chain edges are not a separately mutated collection: the parent/child
// relation is derived from User.ParentID and queried as "children of X".
package store

import (
	"context"
	"errors"
	"time"

	"github.com/thechain/chain/internal/model"
)

// Common errors for store operations.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrEmailExists    = errors.New("email already exists")
	ErrChainKeyExists = errors.New("chain key already exists")
	ErrPositionExists = errors.New("position already taken")
	ErrTicketNotFound = errors.New("ticket not found")
	ErrCodeExists     = errors.New("ticket code already exists")
	ErrStatusConflict = errors.New("ticket is not in the expected status")
)

// Store is the persistence interface consumed by the services.
// Identity is the only writer of users; the ticket lifecycle manager is
// the only writer of tickets.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *model.User) error
	UserByID(ctx context.Context, id string) (*model.User, error)
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UserByChainKey(ctx context.Context, chainKey string) (*model.User, error)
	CountUsers(ctx context.Context) (int, error)
	EarliestJoin(ctx context.Context) (time.Time, error)

	// Chain edges, derived from User.ParentID. Ordered by position ascending.
	Children(ctx context.Context, parentID string) ([]*model.User, error)

	// Tickets
	CreateTicket(ctx context.Context, ticket *model.Ticket) error
	TicketByCode(ctx context.Context, code string) (*model.Ticket, error)
	TicketsByOwner(ctx context.Context, ownerID string) ([]*model.Ticket, error)
	CountActiveTickets(ctx context.Context) (int, error)
	ActiveTicketsDueBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Ticket, error)

	// TransitionTicket moves a ticket from one status to another.
	// The write only happens if the ticket is currently in the `from`
	// status, which keeps the lazy-expiry read-modify-write atomic and
	// idempotent. Returns ErrStatusConflict otherwise.
	TransitionTicket(ctx context.Context, id string, from, to model.TicketStatus) (*model.Ticket, error)

	// RedeemTicket transitions an active ticket to redeemed and records
	// who claimed it and when. Returns ErrStatusConflict if the ticket
	// is no longer active.
	RedeemTicket(ctx context.Context, id, claimedBy string, claimedAt time.Time) (*model.Ticket, error)

	Ping(ctx context.Context) error
	Close() error
}
