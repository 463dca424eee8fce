package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bimakw/token-forwarder/internal/domain/entities"
)

// MonitorStatusProvider exposes snapshots of the running network monitors
type MonitorStatusProvider interface {
	Statuses() []entities.MonitorStatus
	Status(network string) (entities.MonitorStatus, bool)
}

// MonitorHandler serves the state of each network monitor
type MonitorHandler struct {
	monitors MonitorStatusProvider
}

// NewMonitorHandler creates a new monitor handler
func NewMonitorHandler(monitors MonitorStatusProvider) *MonitorHandler {
	return &MonitorHandler{monitors: monitors}
}

// MonitorsResponse lists every monitor
type MonitorsResponse struct {
	Monitors []entities.MonitorStatus `json:"monitors"`
	Running  int                      `json:"running"`
}

// RegisterRoutes registers the monitor routes
func (h *MonitorHandler) RegisterRoutes(r chi.Router) {
	r.Get("/monitors", h.GetMonitors)
	r.Get("/monitors/{network}", h.GetMonitor)
}

// GetMonitors handles GET /monitors
func (h *MonitorHandler) GetMonitors(w http.ResponseWriter, r *http.Request) {
	statuses := h.monitors.Statuses()

	running := 0
	for _, s := range statuses {
		if s.State == entities.MonitorRunning {
			running++
		}
	}

	respondJSON(w, http.StatusOK, MonitorsResponse{Monitors: statuses, Running: running})
}

// GetMonitor handles GET /monitors/{network}
func (h *MonitorHandler) GetMonitor(w http.ResponseWriter, r *http.Request) {
	network := chi.URLParam(r, "network")

	status, ok := h.monitors.Status(network)
	if !ok {
		respondError(w, http.StatusNotFound, "Unknown network")
		return
	}

	respondJSON(w, http.StatusOK, status)
}
