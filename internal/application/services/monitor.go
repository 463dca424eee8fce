package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/bimakw/token-forwarder/internal/config"
	"github.com/bimakw/token-forwarder/internal/domain/entities"
	"github.com/bimakw/token-forwarder/internal/domain/repositories"
	ethinfra "github.com/bimakw/token-forwarder/internal/infrastructure/ethereum"
)

// errScannerStopped is reported when a scanner returns while its context is live
var errScannerStopped = errors.New("scanner stopped unexpectedly")

// MonitorConfig holds the behaviour shared by every network monitor
type MonitorConfig struct {
	Destination       common.Address
	SweepTokens       []string
	ScanMode          string
	PollInterval      time.Duration
	MaxBlockRange     uint64
	ForwardDelay      time.Duration
	RestartCooldown   time.Duration
	MaxRestartBackoff time.Duration
}

// MonitorDeps are the collaborators a monitor builds each run from
type MonitorDeps struct {
	Bootstrap Bootstrapper
	// NewSeenStore returns the dedup store for a run
	NewSeenStore func() repositories.SeenStore
	History      repositories.ForwardRepository
	Notifier     Notifier
}

// monitorRun is the state of one monitor run. Nothing in it survives a restart.
type monitorRun struct {
	session *Session
	scanner Scanner
	handler *IncomingTransferHandler
	sweeper *StartupSweeper
}

// NetworkMonitor watches one network for incoming transfers and restarts itself
// on failure with exponential backoff.
type NetworkMonitor struct {
	network entities.NetworkConfig
	cfg     MonitorConfig
	deps    MonitorDeps
	logger  *zap.Logger

	mu      sync.RWMutex
	status  entities.MonitorStatus
	handler *IncomingTransferHandler

	// handlers of ended runs whose forwards are still pending
	draining map[*IncomingTransferHandler]struct{}
}

// NewNetworkMonitor creates a monitor in the Initializing state
func NewNetworkMonitor(network entities.NetworkConfig, cfg MonitorConfig, deps MonitorDeps, logger *zap.Logger) *NetworkMonitor {
	m := &NetworkMonitor{
		network: network,
		cfg:     cfg,
		deps:    deps,
		logger:  logger.With(zap.String("network", network.Name)),

		draining: make(map[*IncomingTransferHandler]struct{}),
	}
	m.status = entities.MonitorStatus{Network: network.Name}
	m.setState(entities.MonitorInitializing, nil)
	return m
}

// Name returns the network name
func (m *NetworkMonitor) Name() string {
	return m.network.Name
}

// Run supervises the monitor until ctx is done or it halts. It returns nil when
// stopped by ctx and the halting error otherwise. A faulted run's pending forwards
// keep going in the background while the monitor restarts.
func (m *NetworkMonitor) Run(ctx context.Context) error {
	var drains sync.WaitGroup
	defer drains.Wait()

	backoff := m.cfg.RestartCooldown

	for {
		started := time.Now()
		run, err := m.runOnce(ctx)
		m.release(run, &drains)

		if ctx.Err() != nil {
			m.setState(entities.MonitorStopped, nil)
			m.logger.Info("Monitor stopped")
			return nil
		}

		if errors.Is(err, ethinfra.ErrInvalidPrivateKey) {
			m.setState(entities.MonitorHalted, err)
			m.logger.Error("Monitor halted, will not restart", zap.Error(err))
			return err
		}

		if err == nil {
			err = errScannerStopped
		}
		m.fault(err)

		if time.Since(started) > m.cfg.MaxRestartBackoff {
			backoff = m.cfg.RestartCooldown
		}

		m.logger.Warn("Monitor faulted, restarting",
			zap.Error(err),
			zap.Duration("backoff", backoff),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.setState(entities.MonitorStopped, nil)
			m.logger.Info("Monitor stopped")
			return nil
		case <-timer.C:
		}

		m.setState(entities.MonitorRestarting, nil)
		backoff *= 2
		if backoff > m.cfg.MaxRestartBackoff {
			backoff = m.cfg.MaxRestartBackoff
		}
	}
}

// runOnce performs one Initializing -> Running cycle with fresh state. It returns
// as soon as the scanner stops; the returned run may still have pending forwards.
func (m *NetworkMonitor) runOnce(ctx context.Context) (run *monitorRun, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("monitor panic: %v", r)
		}
	}()

	m.setState(entities.MonitorInitializing, nil)

	session, err := m.deps.Bootstrap(ctx, m.network)
	if err != nil {
		return nil, fmt.Errorf("initialization failed: %w", err)
	}
	defer func() {
		if run == nil && session.Close != nil {
			session.Close()
		}
	}()

	run = m.newRun(session)
	m.mu.Lock()
	m.handler = run.handler
	m.mu.Unlock()

	if err := run.scanner.Start(ctx); err != nil {
		return run, err
	}

	m.setRunning(session.Account)
	m.logger.Info("Monitor running",
		zap.String("account", session.Account.Hex()),
		zap.String("scan_mode", m.scanMode()),
	)

	run.sweeper.Sweep(ctx)

	return run, run.scanner.Run(ctx, run.handler.Handle)
}

// release lets a finished run's pending forwards complete on their own, then
// closes its session
func (m *NetworkMonitor) release(run *monitorRun, drains *sync.WaitGroup) {
	if run == nil {
		return
	}

	m.mu.Lock()
	if m.handler == run.handler {
		m.handler = nil
	}
	m.draining[run.handler] = struct{}{}
	m.mu.Unlock()

	if n := run.handler.Pending(); n > 0 {
		m.logger.Info("Pending forwards continue after run ended", zap.Int64("pending", n))
	}

	drains.Add(1)
	go func() {
		defer drains.Done()
		run.handler.Wait()

		m.mu.Lock()
		delete(m.draining, run.handler)
		m.mu.Unlock()

		if run.session.Close != nil {
			run.session.Close()
		}
	}()
}

func (m *NetworkMonitor) newRun(session *Session) *monitorRun {
	name := m.network.Name

	executor := NewTransferExecutor(
		session.Tokens,
		session.Account,
		m.cfg.Destination,
		name,
		m.deps.History,
		m.deps.Notifier,
		m.logger,
	)

	dedup := NewDeduplicator(m.deps.NewSeenStore(), name, m.logger)
	handler := NewIncomingTransferHandler(session.Account, name, dedup, session.Resolver, executor, m.cfg.ForwardDelay, m.logger)

	var scanner Scanner
	if m.scanMode() == config.ScanModeSubscribe {
		scanner = NewSubscriptionScanner(session.Chain, session.Account, name, m.setCursor, m.logger)
	} else {
		fetcher := ethinfra.NewFetcher(session.Chain, m.cfg.MaxBlockRange, m.logger)
		scanner = NewBlockRangePoller(session.Chain, fetcher, session.Account, name, m.cfg.PollInterval, m.setCursor, m.logger)
	}

	return &monitorRun{
		session: session,
		scanner: scanner,
		handler: handler,
		sweeper: NewStartupSweeper(m.cfg.SweepTokens, session.Resolver, executor, m.logger),
	}
}

func (m *NetworkMonitor) scanMode() string {
	if m.cfg.ScanMode == config.ScanModeSubscribe {
		return config.ScanModeSubscribe
	}
	return config.ScanModePoll
}

// Status returns a snapshot of the monitor
func (m *NetworkMonitor) Status() entities.MonitorStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := m.status
	if m.handler != nil {
		status.PendingForwards = m.handler.Pending()
	}
	for h := range m.draining {
		status.PendingForwards += h.Pending()
	}
	return status
}

func (m *NetworkMonitor) setState(state entities.MonitorState, cause error) {
	m.mu.Lock()
	m.status.State = state
	if cause != nil {
		m.status.LastError = cause.Error()
	}
	m.status.UpdatedAt = time.Now()
	m.mu.Unlock()

	for _, s := range entities.AllMonitorStates {
		value := 0.0
		if s == state {
			value = 1
		}
		monitorState.WithLabelValues(m.network.Name, string(s)).Set(value)
	}
}

func (m *NetworkMonitor) setRunning(account common.Address) {
	m.mu.Lock()
	m.status.Account = strings.ToLower(account.Hex())
	m.mu.Unlock()
	m.setState(entities.MonitorRunning, nil)
}

func (m *NetworkMonitor) fault(err error) {
	m.mu.Lock()
	m.status.Restarts++
	m.mu.Unlock()
	monitorRestarts.WithLabelValues(m.network.Name).Inc()
	m.setState(entities.MonitorFaulted, err)
}

func (m *NetworkMonitor) setCursor(block uint64) {
	m.mu.Lock()
	m.status.LastCheckedBlock = block
	m.status.UpdatedAt = time.Now()
	m.mu.Unlock()
}
