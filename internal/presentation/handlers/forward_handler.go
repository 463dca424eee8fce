package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/token-forwarder/internal/application/services"
	"github.com/bimakw/token-forwarder/internal/domain/entities"
)

// ForwardHandler handles HTTP requests for forward history
type ForwardHandler struct {
	service *services.ForwardService
	logger  *zap.Logger
}

// NewForwardHandler creates a new forward handler
func NewForwardHandler(service *services.ForwardService, logger *zap.Logger) *ForwardHandler {
	return &ForwardHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the forward routes
func (h *ForwardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/forwards", h.GetForwards)
	r.Get("/forwards/{id}", h.GetForward)
}

// GetForwards handles GET /forwards
func (h *ForwardHandler) GetForwards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := entities.DefaultForwardFilter()

	if v := query.Get("network"); v != "" {
		filter.Network = &v
	}
	if v := query.Get("token"); v != "" {
		if !isValidAddress(v) {
			respondError(w, http.StatusBadRequest, "Invalid token address format")
			return
		}
		addr := strings.ToLower(v)
		filter.TokenAddress = &addr
	}
	if v := query.Get("status"); v != "" {
		status := entities.ForwardStatus(strings.ToLower(v))
		switch status {
		case entities.ForwardPending, entities.ForwardConfirmed, entities.ForwardFailed:
			filter.Status = &status
		default:
			respondError(w, http.StatusBadRequest, "Invalid status")
			return
		}
	}
	if v := query.Get("trigger"); v != "" {
		trigger := entities.ForwardTrigger(strings.ToLower(v))
		switch trigger {
		case entities.TriggerEvent, entities.TriggerSweep:
			filter.Trigger = &trigger
		default:
			respondError(w, http.StatusBadRequest, "Invalid trigger")
			return
		}
	}
	if v := query.Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 && limit <= 1000 {
			filter.Limit = limit
		}
	}
	if v := query.Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	response, err := h.service.GetForwards(ctx, filter)
	if err != nil {
		h.logger.Error("Failed to get forwards", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to get forwards")
		return
	}

	respondJSON(w, http.StatusOK, response)
}

// GetForward handles GET /forwards/{id}
func (h *ForwardHandler) GetForward(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid forward id")
		return
	}

	forward, err := h.service.GetForward(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get forward", zap.Int64("id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to get forward")
		return
	}
	if forward == nil {
		respondError(w, http.StatusNotFound, "Forward not found")
		return
	}

	respondJSON(w, http.StatusOK, forward)
}
