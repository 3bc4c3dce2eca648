package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/thechain/chain/internal/auth"
	"github.com/thechain/chain/internal/handler/dto"
	"github.com/thechain/chain/internal/identity"
	"github.com/thechain/chain/internal/middleware"
	"github.com/thechain/chain/internal/ticket"
)

// AuthHandler handles registration, login and session endpoints.
type AuthHandler struct {
	svc    *identity.Service
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *identity.Service, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		svc:    svc,
		logger: logger,
	}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if err := validateRegister(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	session, token, err := h.svc.Register(r.Context(), identity.RegisterInput{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		TicketCode:  req.TicketCode,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("member_joined",
		"user_id", session.UserID,
		"position", session.Position,
	)

	writeJSON(w, http.StatusCreated, dto.ToSessionResponse(session, token))
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if req.Identifier == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "Identifier and password are required")
		return
	}

	session, token, err := h.svc.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToSessionResponse(session, token))
}

// Logout handles POST /api/v1/auth/logout. Requires authentication.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := auth.MustSessionFromContext(r.Context())

	if err := h.svc.Logout(r.Context(), session.UserID); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me. Requires authentication.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session := auth.MustSessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, dto.ToSessionResponse(session, ""))
}

func validateRegister(req *dto.RegisterRequest) error {
	if err := middleware.ValidateEmail(req.Email); err != nil {
		return err
	}
	if err := middleware.ValidateDisplayName(req.DisplayName); err != nil {
		return err
	}
	if err := middleware.ValidatePassword(req.Password); err != nil {
		return err
	}
	return middleware.ValidateTicketCode(req.TicketCode)
}

func (h *AuthHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrEmailTaken):
		writeError(w, http.StatusConflict, "EMAIL_TAKEN", "Email is already registered")
	case errors.Is(err, identity.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid identifier or password")
	case errors.Is(err, identity.ErrTicketRequired):
		writeError(w, http.StatusBadRequest, "TICKET_REQUIRED", "A ticket code is required to join")
	case errors.Is(err, ticket.ErrInvalidOrExpiredCode):
		writeError(w, http.StatusUnprocessableEntity, "INVALID_TICKET", "Ticket code is invalid or expired")
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
