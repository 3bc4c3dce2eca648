// Package model defines domain entities for the application.
package model

import "time"

// Session is the authenticated projection of a User.
// It carries everything the presentation layer needs and nothing
// credential-related.
type Session struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	ChainKey    string    `json:"chain_key"`
	Position    int       `json:"position"`
	ParentID    *string   `json:"parent_id,omitempty"`
	LoginAt     time.Time `json:"login_at"`
}

// NewSession projects a User into a Session with the given login time.
func NewSession(u *User, loginAt time.Time) *Session {
	return &Session{
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		ChainKey:    u.ChainKey,
		Position:    u.Position,
		ParentID:    u.ParentID,
		LoginAt:     loginAt,
	}
}
