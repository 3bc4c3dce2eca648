package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/thechain/chain/internal/model"
)

// Memory is an in-process Store implementation. It backs the prototype
// single-store mode and the unit tests; the data lives only as long as
// the process.
type Memory struct {
	mu      sync.Mutex
	users   map[string]*model.User   // by ID
	tickets map[string]*model.Ticket // by ID
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:   make(map[string]*model.User),
		tickets: make(map[string]*model.Ticket),
	}
}

// Ping always succeeds.
func (m *Memory) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// CreateUser inserts a new user, enforcing email, chain key and
// position uniqueness.
func (m *Memory) CreateUser(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		switch {
		case u.Email == user.Email:
			return ErrEmailExists
		case u.ChainKey == user.ChainKey:
			return ErrChainKeyExists
		case u.Position == user.Position:
			return ErrPositionExists
		}
	}

	m.users[user.ID] = cloneUser(user)
	return nil
}

// UserByID retrieves a user by ID.
func (m *Memory) UserByID(ctx context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(user), nil
}

// UserByEmail retrieves a user by email. The match is case-sensitive.
func (m *Memory) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return m.findUser(func(u *model.User) bool { return u.Email == email })
}

// UserByChainKey retrieves a user by chain key.
func (m *Memory) UserByChainKey(ctx context.Context, chainKey string) (*model.User, error) {
	return m.findUser(func(u *model.User) bool { return u.ChainKey == chainKey })
}

func (m *Memory) findUser(match func(*model.User) bool) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

// CountUsers returns the number of registered users.
func (m *Memory) CountUsers(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

// EarliestJoin returns the join time of the seed user, or the zero time
// if the chain is empty.
func (m *Memory) EarliestJoin(ctx context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var earliest time.Time
	for _, u := range m.users {
		if earliest.IsZero() || u.JoinedAt.Before(earliest) {
			earliest = u.JoinedAt
		}
	}
	return earliest, nil
}

// Children lists the users invited by parentID, ordered by position.
func (m *Memory) Children(ctx context.Context, parentID string) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var children []*model.User
	for _, u := range m.users {
		if u.ParentID != nil && *u.ParentID == parentID {
			children = append(children, cloneUser(u))
		}
	}

	sort.Slice(children, func(i, j int) bool {
		return children[i].Position < children[j].Position
	})

	return children, nil
}

// CreateTicket inserts a new ticket, enforcing code uniqueness.
func (m *Memory) CreateTicket(ctx context.Context, ticket *model.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.tickets {
		if t.Code == ticket.Code {
			return ErrCodeExists
		}
	}

	m.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

// TicketByCode retrieves a ticket by its redeemable code.
func (m *Memory) TicketByCode(ctx context.Context, code string) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.tickets {
		if t.Code == code {
			return cloneTicket(t), nil
		}
	}
	return nil, ErrTicketNotFound
}

// TicketsByOwner lists a user's tickets, newest first.
func (m *Memory) TicketsByOwner(ctx context.Context, ownerID string) ([]*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var tickets []*model.Ticket
	for _, t := range m.tickets {
		if t.OwnerID == ownerID {
			tickets = append(tickets, cloneTicket(t))
		}
	}

	sort.Slice(tickets, func(i, j int) bool {
		if tickets[i].CreatedAt.Equal(tickets[j].CreatedAt) {
			return tickets[i].ID > tickets[j].ID
		}
		return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
	})

	return tickets, nil
}

// CountActiveTickets returns the number of tickets in the active status.
func (m *Memory) CountActiveTickets(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, t := range m.tickets {
		if t.Status == model.TicketStatusActive {
			count++
		}
	}
	return count, nil
}

// ActiveTicketsDueBefore lists active tickets whose deadline has passed,
// oldest deadline first.
func (m *Memory) ActiveTicketsDueBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []*model.Ticket
	for _, t := range m.tickets {
		if t.Status == model.TicketStatusActive && !t.ExpiresAt.After(cutoff) {
			due = append(due, cloneTicket(t))
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].ExpiresAt.Before(due[j].ExpiresAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

// TransitionTicket moves a ticket from one status to another under the
// store lock, so the check and the write cannot interleave.
func (m *Memory) TransitionTicket(ctx context.Context, id string, from, to model.TicketStatus) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ticket, ok := m.tickets[id]
	if !ok {
		return nil, ErrTicketNotFound
	}
	if ticket.Status != from {
		return nil, ErrStatusConflict
	}

	ticket.Status = to
	return cloneTicket(ticket), nil
}

// RedeemTicket transitions an active ticket to redeemed, recording the
// claimer identity and time.
func (m *Memory) RedeemTicket(ctx context.Context, id, claimedBy string, claimedAt time.Time) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ticket, ok := m.tickets[id]
	if !ok {
		return nil, ErrTicketNotFound
	}
	if ticket.Status != model.TicketStatusActive {
		return nil, ErrStatusConflict
	}

	ticket.Status = model.TicketStatusRedeemed
	ticket.ClaimedBy = &claimedBy
	ticket.ClaimedAt = &claimedAt
	return cloneTicket(ticket), nil
}

func cloneUser(u *model.User) *model.User {
	c := *u
	if u.ParentID != nil {
		parent := *u.ParentID
		c.ParentID = &parent
	}
	return &c
}

func cloneTicket(t *model.Ticket) *model.Ticket {
	c := *t
	if t.ClaimedBy != nil {
		claimedBy := *t.ClaimedBy
		c.ClaimedBy = &claimedBy
	}
	if t.ClaimedAt != nil {
		claimedAt := *t.ClaimedAt
		c.ClaimedAt = &claimedAt
	}
	return &c
}
