package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/thechain/chain/internal/auth"
	"github.com/thechain/chain/internal/clock"
	"github.com/thechain/chain/internal/handler/dto"
	"github.com/thechain/chain/internal/ticket"
)

// TicketHandler handles ticket lifecycle endpoints. All routes require
// authentication; the ticket owner is always the session user.
type TicketHandler struct {
	svc    *ticket.Service
	clock  clock.Clock
	logger *slog.Logger
}

// NewTicketHandler creates a new TicketHandler.
func NewTicketHandler(svc *ticket.Service, clk clock.Clock, logger *slog.Logger) *TicketHandler {
	return &TicketHandler{
		svc:    svc,
		clock:  clk,
		logger: logger,
	}
}

// Issue handles POST /api/v1/tickets.
func (h *TicketHandler) Issue(w http.ResponseWriter, r *http.Request) {
	session := auth.MustSessionFromContext(r.Context())

	issued, err := h.svc.Issue(r.Context(), session.UserID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("ticket_issued",
		"ticket_id", issued.ID,
		"owner_id", session.UserID,
	)

	writeJSON(w, http.StatusCreated, dto.ToTicketResponse(issued, h.clock.Now()))
}

// Active handles GET /api/v1/tickets/active. Responds 404 when the
// member holds no live ticket.
func (h *TicketHandler) Active(w http.ResponseWriter, r *http.Request) {
	session := auth.MustSessionFromContext(r.Context())

	active, err := h.svc.Active(r.Context(), session.UserID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	if active == nil {
		writeError(w, http.StatusNotFound, "NO_ACTIVE_TICKET", "No active ticket")
		return
	}

	writeJSON(w, http.StatusOK, dto.ToTicketResponse(active, h.clock.Now()))
}

// Cancel handles DELETE /api/v1/tickets/active.
func (h *TicketHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	session := auth.MustSessionFromContext(r.Context())

	cancelled, err := h.svc.Cancel(r.Context(), session.UserID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("ticket_cancelled",
		"ticket_id", cancelled.ID,
		"owner_id", session.UserID,
	)

	writeJSON(w, http.StatusOK, dto.ToTicketResponse(cancelled, h.clock.Now()))
}

// History handles GET /api/v1/tickets.
func (h *TicketHandler) History(w http.ResponseWriter, r *http.Request) {
	session := auth.MustSessionFromContext(r.Context())

	tickets, err := h.svc.History(r.Context(), session.UserID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	now := h.clock.Now()
	responses := make([]*dto.TicketResponse, len(tickets))
	for i, t := range tickets {
		responses[i] = dto.ToTicketResponse(t, now)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": responses})
}

func (h *TicketHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ticket.ErrActiveTicketExists):
		writeError(w, http.StatusConflict, "ACTIVE_TICKET_EXISTS", "An active ticket already exists")
	case errors.Is(err, ticket.ErrNoActiveTicket):
		writeError(w, http.StatusNotFound, "NO_ACTIVE_TICKET", "No active ticket")
	case errors.Is(err, ticket.ErrInvalidOrExpiredCode):
		writeError(w, http.StatusUnprocessableEntity, "INVALID_TICKET", "Ticket code is invalid or expired")
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
