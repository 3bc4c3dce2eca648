package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thechain/chain/internal/model"
)

// Postgres is the durable Store implementation backed by a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store from a connection string.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Ping checks database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// Pool returns the underlying connection pool.
// Use sparingly - prefer adding methods to Postgres.
func (p *Postgres) Pool() *pgxpool.Pool {
	return p.pool
}

// CreateUser inserts a new user.
func (p *Postgres) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, email, display_name, chain_key, position, parent_id, password_hash, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := p.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.DisplayName,
		user.ChainKey,
		user.Position,
		user.ParentID,
		user.PasswordHash,
		user.JoinedAt,
	)

	if err != nil {
		switch {
		case isUniqueViolation(err, "users_email_key"):
			return ErrEmailExists
		case isUniqueViolation(err, "users_chain_key_key"):
			return ErrChainKeyExists
		case isUniqueViolation(err, "users_position_key"):
			return ErrPositionExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// UserByID retrieves a user by ID.
func (p *Postgres) UserByID(ctx context.Context, id string) (*model.User, error) {
	return p.userByField(ctx, "id", id)
}

// UserByEmail retrieves a user by email. The match is case-sensitive.
func (p *Postgres) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return p.userByField(ctx, "email", email)
}

// UserByChainKey retrieves a user by chain key.
func (p *Postgres) UserByChainKey(ctx context.Context, chainKey string) (*model.User, error) {
	return p.userByField(ctx, "chain_key", chainKey)
}

func (p *Postgres) userByField(ctx context.Context, field, value string) (*model.User, error) {
	query := fmt.Sprintf(`
		SELECT id, email, display_name, chain_key, position, parent_id, password_hash, joined_at
		FROM users
		WHERE %s = $1
	`, field)

	user, err := scanUser(p.pool.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by %s: %w", field, err)
	}

	return user, nil
}

// CountUsers returns the number of registered users.
func (p *Postgres) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// EarliestJoin returns the join time of the seed user, or the zero time
// if the chain is empty.
func (p *Postgres) EarliestJoin(ctx context.Context) (time.Time, error) {
	var earliest *time.Time
	err := p.pool.QueryRow(ctx, `SELECT MIN(joined_at) FROM users`).Scan(&earliest)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get earliest join: %w", err)
	}
	if earliest == nil {
		// Empty chain.
		return time.Time{}, nil
	}
	return *earliest, nil
}

// Children lists the users invited by parentID, ordered by position.
func (p *Postgres) Children(ctx context.Context, parentID string) ([]*model.User, error) {
	query := `
		SELECT id, email, display_name, chain_key, position, parent_id, password_hash, joined_at
		FROM users
		WHERE parent_id = $1
		ORDER BY position ASC
	`

	rows, err := p.pool.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating children: %w", err)
	}

	return users, nil
}

// CreateTicket inserts a new ticket.
func (p *Postgres) CreateTicket(ctx context.Context, ticket *model.Ticket) error {
	query := `
		INSERT INTO tickets (id, owner_id, code, status, created_at, expires_at, claimed_by, claimed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := p.pool.Exec(ctx, query,
		ticket.ID,
		ticket.OwnerID,
		ticket.Code,
		ticket.Status,
		ticket.CreatedAt,
		ticket.ExpiresAt,
		ticket.ClaimedBy,
		ticket.ClaimedAt,
	)

	if err != nil {
		if isUniqueViolation(err, "tickets_code_key") {
			return ErrCodeExists
		}
		return fmt.Errorf("failed to create ticket: %w", err)
	}

	return nil
}

// TicketByCode retrieves a ticket by its redeemable code.
func (p *Postgres) TicketByCode(ctx context.Context, code string) (*model.Ticket, error) {
	query := `
		SELECT id, owner_id, code, status, created_at, expires_at, claimed_by, claimed_at
		FROM tickets
		WHERE code = $1
	`

	ticket, err := scanTicket(p.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to get ticket by code: %w", err)
	}

	return ticket, nil
}

// TicketsByOwner lists a user's tickets, newest first.
func (p *Postgres) TicketsByOwner(ctx context.Context, ownerID string) ([]*model.Ticket, error) {
	query := `
		SELECT id, owner_id, code, status, created_at, expires_at, claimed_by, claimed_at
		FROM tickets
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := p.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*model.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickets: %w", err)
	}

	return tickets, nil
}

// CountActiveTickets returns the number of tickets in the active status.
func (p *Postgres) CountActiveTickets(ctx context.Context) (int, error) {
	var count int
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets WHERE status = $1`,
		model.TicketStatusActive,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active tickets: %w", err)
	}
	return count, nil
}

// ActiveTicketsDueBefore lists active tickets whose deadline has passed,
// oldest deadline first. Used by the expiry sweeper.
func (p *Postgres) ActiveTicketsDueBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Ticket, error) {
	query := `
		SELECT id, owner_id, code, status, created_at, expires_at, claimed_by, claimed_at
		FROM tickets
		WHERE status = $1 AND expires_at <= $2
		ORDER BY expires_at ASC
		LIMIT $3
	`

	rows, err := p.pool.Query(ctx, query, model.TicketStatusActive, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*model.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due tickets: %w", err)
	}

	return tickets, nil
}

// TransitionTicket moves a ticket from one status to another.
// The status predicate in the UPDATE makes the transition atomic:
// concurrent or repeated attempts observe ErrStatusConflict instead of
// double-applying.
func (p *Postgres) TransitionTicket(ctx context.Context, id string, from, to model.TicketStatus) (*model.Ticket, error) {
	query := `
		UPDATE tickets
		SET status = $3
		WHERE id = $1 AND status = $2
		RETURNING id, owner_id, code, status, created_at, expires_at, claimed_by, claimed_at
	`

	ticket, err := scanTicket(p.pool.QueryRow(ctx, query, id, from, to))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, p.transitionConflict(ctx, id)
		}
		return nil, fmt.Errorf("failed to transition ticket: %w", err)
	}

	return ticket, nil
}

// RedeemTicket transitions an active ticket to redeemed, recording the
// claimer identity and time.
func (p *Postgres) RedeemTicket(ctx context.Context, id, claimedBy string, claimedAt time.Time) (*model.Ticket, error) {
	query := `
		UPDATE tickets
		SET status = $2, claimed_by = $3, claimed_at = $4
		WHERE id = $1 AND status = $5
		RETURNING id, owner_id, code, status, created_at, expires_at, claimed_by, claimed_at
	`

	ticket, err := scanTicket(p.pool.QueryRow(ctx, query,
		id, model.TicketStatusRedeemed, claimedBy, claimedAt, model.TicketStatusActive,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, p.transitionConflict(ctx, id)
		}
		return nil, fmt.Errorf("failed to redeem ticket: %w", err)
	}

	return ticket, nil
}

// transitionConflict distinguishes a missing ticket from one that is no
// longer in the expected status.
func (p *Postgres) transitionConflict(ctx context.Context, id string) error {
	var exists bool
	err := p.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check ticket existence: %w", err)
	}
	if !exists {
		return ErrTicketNotFound
	}
	return ErrStatusConflict
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.ChainKey,
		&user.Position,
		&user.ParentID,
		&user.PasswordHash,
		&user.JoinedAt,
	)
	return &user, err
}

func scanTicket(row pgx.Row) (*model.Ticket, error) {
	var ticket model.Ticket
	err := row.Scan(
		&ticket.ID,
		&ticket.OwnerID,
		&ticket.Code,
		&ticket.Status,
		&ticket.CreatedAt,
		&ticket.ExpiresAt,
		&ticket.ClaimedBy,
		&ticket.ClaimedAt,
	)
	return &ticket, err
}

// isUniqueViolation checks if the error is a PostgreSQL unique
// constraint violation on the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") && strings.Contains(msg, constraint)
}
