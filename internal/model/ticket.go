// Package model defines domain entities for the application.
package model

import (
	"fmt"
	"time"
)

// TicketStatus represents the lifecycle status of an invitation ticket.
type TicketStatus string

const (
	TicketStatusActive    TicketStatus = "active"
	TicketStatusExpired   TicketStatus = "expired"
	TicketStatusCancelled TicketStatus = "cancelled"
	TicketStatusRedeemed  TicketStatus = "redeemed"
)

// TicketTTL is the fixed lifetime of a ticket from issuance.
const TicketTTL = 24 * time.Hour

// Ticket is a time-limited, single-use invitation code that admits a
// new user into the chain under the ticket's owner.
type Ticket struct {
	ID        string       `json:"id"`
	OwnerID   string       `json:"owner_id"`
	Code      string       `json:"code"`
	Status    TicketStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
	ClaimedBy *string      `json:"claimed_by,omitempty"`
	ClaimedAt *time.Time   `json:"claimed_at,omitempty"`
}

// IsActive returns true if the ticket is in the active status.
// Callers that care about wall-clock validity must also check PastDue.
func (t *Ticket) IsActive() bool {
	return t.Status == TicketStatusActive
}

// PastDue returns true if the ticket's deadline has passed at the
// given instant, regardless of its persisted status.
func (t *Ticket) PastDue(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsTerminal returns true if no further status transitions are allowed.
func (t *Ticket) IsTerminal() bool {
	switch t.Status {
	case TicketStatusExpired, TicketStatusCancelled, TicketStatusRedeemed:
		return true
	}
	return false
}

// Remaining returns the time until expiry at the given instant,
// floored at zero.
func (t *Ticket) Remaining(now time.Time) time.Duration {
	d := t.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// FormatCountdown renders a duration as HH:MM:SS with whole-second
// granularity, for the live ticket countdown.
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatSummary renders a coarse remaining-time summary: "Xh Ym" when
// an hour or more remains, minutes-only under one hour, and "Expired"
// at zero.
func FormatSummary(d time.Duration) string {
	if d <= 0 {
		return "Expired"
	}
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
