package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/bimakw/token-forwarder/internal/domain/entities"
)

// stubMonitors serves fixed statuses
type stubMonitors []entities.MonitorStatus

func (s stubMonitors) Statuses() []entities.MonitorStatus {
	return s
}

func (s stubMonitors) Status(network string) (entities.MonitorStatus, bool) {
	for _, m := range s {
		if strings.EqualFold(m.Network, network) {
			return m, true
		}
	}
	return entities.MonitorStatus{}, false
}

func setupMonitorHandlerTest() http.Handler {
	monitors := stubMonitors{
		{Network: "Ethereum", State: entities.MonitorRunning, LastCheckedBlock: 19000000, PendingForwards: 1},
		{Network: "Polygon", State: entities.MonitorHalted, LastError: "invalid private key"},
	}

	r := chi.NewRouter()
	NewMonitorHandler(monitors).RegisterRoutes(r)
	return r
}

func TestMonitorHandler_GetMonitors(t *testing.T) {
	router := setupMonitorHandlerTest()

	req := httptest.NewRequest(http.MethodGet, "/monitors", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var response MonitorsResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Monitors) != 2 {
		t.Errorf("expected 2 monitors, got %d", len(response.Monitors))
	}
	if response.Running != 1 {
		t.Errorf("expected 1 running, got %d", response.Running)
	}
}

func TestMonitorHandler_GetMonitor(t *testing.T) {
	router := setupMonitorHandlerTest()

	tests := []struct {
		name          string
		network       string
		expectedCode  int
		expectedState entities.MonitorState
	}{
		{name: "running", network: "ethereum", expectedCode: http.StatusOK, expectedState: entities.MonitorRunning},
		{name: "halted", network: "Polygon", expectedCode: http.StatusOK, expectedState: entities.MonitorHalted},
		{name: "unknown", network: "Optimism", expectedCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/monitors/"+tt.network, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.expectedCode {
				t.Fatalf("expected status %d, got %d", tt.expectedCode, rec.Code)
			}
			if tt.expectedCode != http.StatusOK {
				return
			}

			var status entities.MonitorStatus
			if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if status.State != tt.expectedState {
				t.Errorf("expected state %s, got %s", tt.expectedState, status.State)
			}
		})
	}
}
