package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/token-forwarder/internal/application/services"
)

// StatsHandler handles HTTP requests for per-token forward statistics
type StatsHandler struct {
	service *services.StatsService
	logger  *zap.Logger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(service *services.StatsService, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the stats routes
func (h *StatsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/tokens/{address}/stats", h.GetTokenStats)
}

// GetTokenStats handles GET /tokens/{address}/stats
func (h *StatsHandler) GetTokenStats(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if !isValidAddress(address) {
		respondError(w, http.StatusBadRequest, "Invalid token address format")
		return
	}

	var network *string
	if v := r.URL.Query().Get("network"); v != "" {
		network = &v
	}

	stats, err := h.service.GetTokenStats(r.Context(), address, network)
	if err != nil {
		h.logger.Error("Failed to get token stats", zap.String("token", address), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to get token stats")
		return
	}
	if stats == nil {
		respondError(w, http.StatusNotFound, "No forwards for token")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}
