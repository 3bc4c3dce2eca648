// Package model defines domain entities for the application.
package model

import "time"

// ChainStats holds global chain-growth statistics.
// It is the shape returned by the remote stats endpoint and by the
// local fallback aggregation.
type ChainStats struct {
	TotalUsers        int       `json:"totalUsers"`
	ActiveTickets     int       `json:"activeTickets"`
	AverageGrowthRate float64   `json:"averageGrowthRate"`
	Countries         int       `json:"countries"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// MemberStats holds per-user aggregates for display.
type MemberStats struct {
	TicketCount int `json:"ticket_count"`
	InviteCount int `json:"invite_count"`
	// ActiveTicketRemaining is nil when the user has no active ticket.
	ActiveTicketRemaining *time.Duration `json:"active_ticket_remaining,omitempty"`
}
