package auth

import (
	"context"

	"github.com/thechain/chain/internal/model"
)

type contextKey string

const sessionContextKey contextKey = "session"

// ContextWithSession returns a new context carrying the session.
func ContextWithSession(ctx context.Context, session *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// SessionFromContext extracts the session from the context, if present.
func SessionFromContext(ctx context.Context) (*model.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(*model.Session)
	return session, ok
}

// MustSessionFromContext extracts the session or panics. Only call this
// behind the authentication middleware.
func MustSessionFromContext(ctx context.Context) *model.Session {
	session, ok := SessionFromContext(ctx)
	if !ok {
		panic("auth: no session in context")
	}
	return session
}

// UserIDFromContext returns the authenticated user's ID, or "" when the
// request is anonymous.
func UserIDFromContext(ctx context.Context) string {
	if session, ok := SessionFromContext(ctx); ok {
		return session.UserID
	}
	return ""
}
