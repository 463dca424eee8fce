package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bimakw/token-forwarder/internal/domain/entities"
)

// ErrNoMonitorRunning is reported by HealthCheck when no monitor is in the Running
// state, and by Run once every monitor has halted
var ErrNoMonitorRunning = errors.New("no network monitor is running")

// Supervisor runs one monitor per network. A monitor's failure never affects another.
type Supervisor struct {
	monitors []*NetworkMonitor
	logger   *zap.Logger
}

// NewSupervisor creates a supervisor over the given monitors
func NewSupervisor(monitors []*NetworkMonitor, logger *zap.Logger) *Supervisor {
	return &Supervisor{
		monitors: monitors,
		logger:   logger,
	}
}

// Run blocks until ctx is done or every monitor has halted. It returns an error only
// when all monitors halted; that error wraps ErrNoMonitorRunning and each halt cause.
func (s *Supervisor) Run(ctx context.Context) error {
	var (
		g      errgroup.Group
		mu     sync.Mutex
		halted []error
	)

	for _, m := range s.monitors {
		g.Go(func() error {
			if err := m.Run(ctx); err != nil {
				mu.Lock()
				halted = append(halted, fmt.Errorf("%s: %w", m.Name(), err))
				mu.Unlock()
			}
			return nil
		})
	}

	s.logger.Info("Supervisor started", zap.Int("monitors", len(s.monitors)))
	_ = g.Wait()

	if len(s.monitors) > 0 && len(halted) == len(s.monitors) {
		return fmt.Errorf("%w: %w", ErrNoMonitorRunning, errors.Join(halted...))
	}
	return nil
}

// Statuses returns a snapshot of every monitor in network order
func (s *Supervisor) Statuses() []entities.MonitorStatus {
	statuses := make([]entities.MonitorStatus, len(s.monitors))
	for i, m := range s.monitors {
		statuses[i] = m.Status()
	}
	return statuses
}

// Status returns the snapshot of one network's monitor
func (s *Supervisor) Status(network string) (entities.MonitorStatus, bool) {
	for _, m := range s.monitors {
		if strings.EqualFold(m.Name(), network) {
			return m.Status(), true
		}
	}
	return entities.MonitorStatus{}, false
}

// HealthCheck succeeds while at least one monitor is running
func (s *Supervisor) HealthCheck(_ context.Context) error {
	for _, m := range s.monitors {
		if m.Status().State == entities.MonitorRunning {
			return nil
		}
	}
	return ErrNoMonitorRunning
}
