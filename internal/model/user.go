// Package model defines domain entities for the application.
package model

import "time"

// User represents a member of the invitation chain.
// Users are never deleted and positions are never reused.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	ChainKey     string    `json:"chain_key"`
	Position     int       `json:"position"`
	ParentID     *string   `json:"parent_id,omitempty"`
	PasswordHash string    `json:"-"` // Never serialize
	JoinedAt     time.Time `json:"joined_at"`
}

// IsSeed returns true if this user is the chain root.
// Exactly one user in the chain has no parent.
func (u *User) IsSeed() bool {
	return u.ParentID == nil
}
