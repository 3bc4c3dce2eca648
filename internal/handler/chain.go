package handler

import (
	"log/slog"
	"net/http"

	"github.com/thechain/chain/internal/auth"
	"github.com/thechain/chain/internal/chain"
	"github.com/thechain/chain/internal/handler/dto"
)

// ChainHandler handles chain view and statistics endpoints.
type ChainHandler struct {
	view   *chain.View
	stats  *chain.Stats
	logger *slog.Logger
}

// NewChainHandler creates a new ChainHandler.
func NewChainHandler(view *chain.View, stats *chain.Stats, logger *slog.Logger) *ChainHandler {
	return &ChainHandler{
		view:   view,
		stats:  stats,
		logger: logger,
	}
}

// Children handles GET /api/v1/users/me/chain. Requires authentication.
func (h *ChainHandler) Children(w http.ResponseWriter, r *http.Request) {
	session := auth.MustSessionFromContext(r.Context())

	children, err := h.view.Children(r.Context(), session.UserID)
	if err != nil {
		h.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToChildrenResponse(children))
}

// MyStats handles GET /api/v1/users/me/stats. Requires authentication.
func (h *ChainHandler) MyStats(w http.ResponseWriter, r *http.Request) {
	session := auth.MustSessionFromContext(r.Context())

	stats, err := h.view.StatsFor(r.Context(), session.UserID)
	if err != nil {
		h.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToMemberStatsResponse(stats))
}

// GlobalStats handles GET /api/v1/chain/stats. Public endpoint.
func (h *ChainHandler) GlobalStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Global(r.Context())
	if err != nil {
		h.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *ChainHandler) internalError(w http.ResponseWriter, err error) {
	h.logger.Error("internal_error", "error", err)
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
}
