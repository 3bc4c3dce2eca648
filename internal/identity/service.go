// Package identity implements registration, login and session
// management for chain members.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thechain/chain/internal/auth"
	"github.com/thechain/chain/internal/clock"
	"github.com/thechain/chain/internal/metrics"
	"github.com/thechain/chain/internal/model"
	"github.com/thechain/chain/internal/store"
	"github.com/thechain/chain/internal/ticket"
)

// Common errors for identity operations.
var (
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials indicates the identifier or password is wrong.
	// Unknown identifiers and bad passwords are indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTicketRequired indicates registration was attempted without a
	// ticket code after the seed member exists.
	ErrTicketRequired = errors.New("a ticket code is required to join")
	// ErrSeedExists indicates the chain already has its first member.
	ErrSeedExists = errors.New("the chain already has a seed member")
)

// createAttempts bounds retries when a generated chain key or position
// collides with a concurrent registration.
const createAttempts = 3

// SessionStore holds the single live session slot per user.
type SessionStore interface {
	SetSession(ctx context.Context, userID, tokenID string, ttl time.Duration) error
	SessionID(ctx context.Context, userID string) (string, error)
	DeleteSession(ctx context.Context, userID string) error
}

// Service manages member identity and sessions.
type Service struct {
	store      store.Store
	sessions   SessionStore
	tokens     *auth.TokenIssuer
	tickets    *ticket.Service
	clock      clock.Clock
	logger     *slog.Logger
	metrics    metrics.Recorder
	sessionTTL time.Duration
}

// NewService creates an identity Service.
func NewService(
	st store.Store,
	sessions SessionStore,
	tokens *auth.TokenIssuer,
	tickets *ticket.Service,
	clk clock.Clock,
	logger *slog.Logger,
	rec metrics.Recorder,
	sessionTTL time.Duration,
) *Service {
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &Service{
		store:      st,
		sessions:   sessions,
		tokens:     tokens,
		tickets:    tickets,
		clock:      clk,
		logger:     logger,
		metrics:    rec,
		sessionTTL: sessionTTL,
	}
}

// RegisterInput carries the fields for a new registration.
type RegisterInput struct {
	Email       string
	DisplayName string
	Password    string
	TicketCode  string
}

// Register creates a new member and opens their first session.
//
// Once the seed member exists every registration consumes a live ticket;
// the ticket's owner becomes the new member's parent in the chain. The
// ticket is single-use: a second registration with the same code fails.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.Session, string, error) {
	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("count users: %w", err)
	}

	var invite *model.Ticket
	if count > 0 {
		if in.TicketCode == "" {
			return nil, "", ErrTicketRequired
		}
		invite, err = s.tickets.Redeem(ctx, in.TicketCode)
		if err != nil {
			return nil, "", err
		}
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	now := s.clock.Now()
	user := &model.User{
		ID:           auth.NewEntityID(now),
		Email:        in.Email,
		DisplayName:  in.DisplayName,
		PasswordHash: hash,
		JoinedAt:     now,
	}
	if invite != nil {
		parentID := invite.OwnerID
		user.ParentID = &parentID
	}

	if err := s.createWithRetry(ctx, user, count); err != nil {
		if errors.Is(err, ErrSeedExists) {
			// Someone else became the seed while we were registering;
			// this member now needs a ticket like everyone else.
			return nil, "", ErrTicketRequired
		}
		return nil, "", err
	}

	if invite != nil {
		if _, err := s.tickets.MarkRedeemed(ctx, invite.ID, user.ID); err != nil {
			// The code was consumed between our check and the write. The
			// member is already created, so record the race and move on.
			s.logger.WarnContext(ctx, "ticket consumed concurrently",
				slog.String("ticket_id", invite.ID),
				slog.String("user_id", user.ID),
			)
		}
	}

	s.metrics.IncUserRegistered()
	s.logger.InfoContext(ctx, "member registered",
		slog.String("user_id", user.ID),
		slog.String("chain_key", user.ChainKey),
		slog.Int("position", user.Position),
	)

	return s.openSession(ctx, user, now)
}

// createWithRetry inserts the user, regenerating the chain key or
// re-deriving the position when a concurrent registration takes either.
func (s *Service) createWithRetry(ctx context.Context, user *model.User, count int) error {
	for attempt := 0; attempt < createAttempts; attempt++ {
		user.ChainKey = auth.GenerateChainKey()
		user.Position = count + 1

		err := s.store.CreateUser(ctx, user)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, store.ErrEmailExists):
			return ErrEmailTaken
		case errors.Is(err, store.ErrChainKeyExists):
			continue
		case errors.Is(err, store.ErrPositionExists):
			if user.ParentID == nil {
				// A concurrent registration took position 1. A parentless
				// user can only ever be the seed, so retrying at a later
				// position would mint a second chain root.
				return ErrSeedExists
			}
			fresh, countErr := s.store.CountUsers(ctx)
			if countErr != nil {
				return fmt.Errorf("count users: %w", countErr)
			}
			count = fresh
			continue
		default:
			return fmt.Errorf("create user: %w", err)
		}
	}
	return fmt.Errorf("create user: retries exhausted")
}

// Login verifies credentials and opens a session. The identifier may be
// the member's email or their chain key. A successful login replaces
// any existing session for the user.
func (s *Service) Login(ctx context.Context, identifier, password string) (*model.Session, string, error) {
	user, err := s.store.UserByEmail(ctx, identifier)
	if errors.Is(err, store.ErrUserNotFound) {
		user, err = s.store.UserByChainKey(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			s.metrics.IncLoginFailure()
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("lookup user: %w", err)
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		s.metrics.IncLoginFailure()
		return nil, "", ErrInvalidCredentials
	}

	s.metrics.IncLoginSuccess()
	s.logger.InfoContext(ctx, "member logged in", slog.String("user_id", user.ID))

	return s.openSession(ctx, user, s.clock.Now())
}

// Logout closes the user's session. Logging out without a live session
// is not an error.
func (s *Service) Logout(ctx context.Context, userID string) error {
	if err := s.sessions.DeleteSession(ctx, userID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.logger.InfoContext(ctx, "member logged out", slog.String("user_id", userID))
	return nil
}

// Current resolves a session token to the member it belongs to. A token
// that is expired, tampered with, or superseded by a newer login returns
// auth.ErrInvalidToken.
func (s *Service) Current(ctx context.Context, token string) (*model.Session, error) {
	userID, tokenID, err := s.tokens.Parse(token)
	if err != nil {
		return nil, auth.ErrInvalidToken
	}

	current, err := s.sessions.SessionID(ctx, userID)
	if err != nil || current != tokenID {
		return nil, auth.ErrInvalidToken
	}

	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	return model.NewSession(user, s.clock.Now()), nil
}

// BootstrapSeed creates the first member of the chain. It fails once any
// member exists.
func (s *Service) BootstrapSeed(ctx context.Context, email, displayName, password string) (*model.User, error) {
	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil, ErrSeedExists
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock.Now()
	user := &model.User{
		ID:           auth.NewEntityID(now),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		JoinedAt:     now,
	}
	if err := s.createWithRetry(ctx, user, 0); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "seed member created",
		slog.String("user_id", user.ID),
		slog.String("chain_key", user.ChainKey),
	)
	return user, nil
}

func (s *Service) openSession(ctx context.Context, user *model.User, now time.Time) (*model.Session, string, error) {
	token, tokenID, err := s.tokens.Issue(user.ID, now)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	if err := s.sessions.SetSession(ctx, user.ID, tokenID, s.sessionTTL); err != nil {
		return nil, "", fmt.Errorf("store session: %w", err)
	}
	return model.NewSession(user, now), token, nil
}
