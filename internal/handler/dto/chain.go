// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/thechain/chain/internal/model"
)

// RegisterRequest represents the request body for joining the chain.
type RegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
	TicketCode  string `json:"ticket_code,omitempty"`
}

// LoginRequest represents the request body for logging in. Identifier
// is the member's email or chain key.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// SessionResponse represents an authenticated member.
type SessionResponse struct {
	UserID      string  `json:"user_id"`
	Email       string  `json:"email"`
	DisplayName string  `json:"display_name"`
	ChainKey    string  `json:"chain_key"`
	Position    int     `json:"position"`
	ParentID    *string `json:"parent_id,omitempty"`
	Token       string  `json:"token,omitempty"`
}

// TicketResponse represents a ticket in API responses.
type TicketResponse struct {
	ID               string     `json:"id"`
	Code             string     `json:"code"`
	Status           string     `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	RemainingSeconds int64      `json:"remaining_seconds"`
	Countdown        string     `json:"countdown"`
	Summary          string     `json:"summary"`
	ClaimedBy        *string    `json:"claimed_by,omitempty"`
	ClaimedAt        *time.Time `json:"claimed_at,omitempty"`
}

// MemberResponse represents a chain member visible to others.
type MemberResponse struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	ChainKey    string    `json:"chain_key"`
	Position    int       `json:"position"`
	JoinedAt    time.Time `json:"joined_at"`
}

// ChildrenResponse represents a member's direct invites.
type ChildrenResponse struct {
	Children []MemberResponse `json:"children"`
}

// MemberStatsResponse represents a member's personal statistics.
type MemberStatsResponse struct {
	TicketCount           int    `json:"ticket_count"`
	InviteCount           int    `json:"invite_count"`
	ActiveTicketRemaining *int64 `json:"active_ticket_remaining_seconds,omitempty"`
	ActiveTicketSummary   string `json:"active_ticket_summary,omitempty"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToSessionResponse converts a session and token to a SessionResponse.
func ToSessionResponse(s *model.Session, token string) *SessionResponse {
	return &SessionResponse{
		UserID:      s.UserID,
		Email:       s.Email,
		DisplayName: s.DisplayName,
		ChainKey:    s.ChainKey,
		Position:    s.Position,
		ParentID:    s.ParentID,
		Token:       token,
	}
}

// ToTicketResponse converts a Ticket model to TicketResponse. now
// drives the countdown fields.
func ToTicketResponse(t *model.Ticket, now time.Time) *TicketResponse {
	remaining := t.Remaining(now)
	return &TicketResponse{
		ID:               t.ID,
		Code:             t.Code,
		Status:           string(t.Status),
		CreatedAt:        t.CreatedAt,
		ExpiresAt:        t.ExpiresAt,
		RemainingSeconds: int64(remaining.Seconds()),
		Countdown:        model.FormatCountdown(remaining),
		Summary:          model.FormatSummary(remaining),
		ClaimedBy:        t.ClaimedBy,
		ClaimedAt:        t.ClaimedAt,
	}
}

// ToMemberResponse converts a User model to the public MemberResponse.
func ToMemberResponse(u *model.User) MemberResponse {
	return MemberResponse{
		UserID:      u.ID,
		DisplayName: u.DisplayName,
		ChainKey:    u.ChainKey,
		Position:    u.Position,
		JoinedAt:    u.JoinedAt,
	}
}

// ToChildrenResponse converts a slice of users to ChildrenResponse.
func ToChildrenResponse(users []*model.User) *ChildrenResponse {
	children := make([]MemberResponse, len(users))
	for i, u := range users {
		children[i] = ToMemberResponse(u)
	}
	return &ChildrenResponse{Children: children}
}

// ToMemberStatsResponse converts MemberStats to its API shape.
func ToMemberStatsResponse(s *model.MemberStats) *MemberStatsResponse {
	resp := &MemberStatsResponse{
		TicketCount: s.TicketCount,
		InviteCount: s.InviteCount,
	}
	if s.ActiveTicketRemaining != nil {
		seconds := int64(s.ActiveTicketRemaining.Seconds())
		resp.ActiveTicketRemaining = &seconds
		resp.ActiveTicketSummary = model.FormatSummary(*s.ActiveTicketRemaining)
	}
	return resp
}
