package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bimakw/token-forwarder/internal/application/services"
	"github.com/bimakw/token-forwarder/internal/config"
	"github.com/bimakw/token-forwarder/internal/domain/repositories"
	"github.com/bimakw/token-forwarder/internal/infrastructure/cache"
	"github.com/bimakw/token-forwarder/internal/infrastructure/database"
	"github.com/bimakw/token-forwarder/internal/infrastructure/logging"
	"github.com/bimakw/token-forwarder/internal/infrastructure/notify"
	"github.com/bimakw/token-forwarder/internal/presentation/handlers"
	"github.com/bimakw/token-forwarder/internal/presentation/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log)
	defer logger.Sync()

	networks := cfg.Networks()
	names := make([]string, len(networks))
	for i, n := range networks {
		names[i] = n.Name
	}

	sweepTokens, rejected := cfg.Forwarder.SweepTokenAddresses()
	for _, raw := range rejected {
		logger.Warn("Ignoring invalid CUSTOM_TOKENS entry", zap.String("entry", raw))
	}

	logger.Info("Starting token-forwarder",
		zap.Strings("networks", names),
		zap.String("recipient", cfg.Forwarder.RecipientAddress),
		zap.String("scan_mode", cfg.Forwarder.ScanMode),
		zap.Duration("forward_delay", cfg.Forwarder.ForwardDelay),
		zap.Int("sweep_tokens", len(sweepTokens)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Forward history (optional)
	var (
		history   repositories.ForwardRepository
		dbChecker handlers.HealthChecker
	)
	if cfg.Database.Enabled {
		db, err := database.NewPostgresDB(cfg.Database, logger)
		if err != nil {
			logger.Warn("Failed to connect to database, running without forward history", zap.Error(err))
		} else {
			defer db.Close()
			if err := db.EnsureSchema(ctx); err != nil {
				logger.Fatal("Failed to prepare database schema", zap.Error(err))
			}
			history = database.NewForwardRepo(db.DB())
			dbChecker = db
		}
	}

	// Dedup store
	newSeenStore := func() repositories.SeenStore {
		return cache.NewMemorySeenStore(cfg.Forwarder.DedupWindow, cfg.Forwarder.DedupCapacity)
	}
	var redisChecker handlers.HealthChecker
	if cfg.Forwarder.DedupBackend == config.DedupBackendRedis {
		redisCache, err := cache.NewRedisCache(cfg.Redis, cfg.Forwarder.DedupWindow, logger)
		if err != nil {
			logger.Warn("Failed to connect to Redis, using in-memory dedup", zap.Error(err))
		} else {
			defer redisCache.Close()
			seen := cache.NewRedisSeenStore(redisCache.Client(), cfg.Forwarder.DedupWindow)
			newSeenStore = func() repositories.SeenStore { return seen }
			redisChecker = redisCache
		}
	}

	// Forward notifications (optional)
	var notifier services.Notifier
	if cfg.Notify.Enabled() {
		webhook := notify.NewWebhookNotifier(cfg.Notify, logger)
		defer webhook.Close()
		notifier = webhook
	}

	monitorCfg := services.MonitorConfig{
		Destination:       common.HexToAddress(strings.TrimSpace(cfg.Forwarder.RecipientAddress)),
		SweepTokens:       sweepTokens,
		ScanMode:          cfg.Forwarder.ScanMode,
		PollInterval:      cfg.Forwarder.PollInterval,
		MaxBlockRange:     cfg.Forwarder.MaxBlockRange,
		ForwardDelay:      cfg.Forwarder.ForwardDelay,
		RestartCooldown:   cfg.Forwarder.RestartCooldown,
		MaxRestartBackoff: cfg.Forwarder.MaxRestartBackoff,
	}
	deps := services.MonitorDeps{
		Bootstrap:    services.NewChainBootstrapper(cfg.Forwarder.PrivateKey, cfg.Ethereum, cfg.Forwarder, logger),
		NewSeenStore: newSeenStore,
		History:      history,
		Notifier:     notifier,
	}

	monitors := make([]*services.NetworkMonitor, len(networks))
	for i, n := range networks {
		monitors[i] = services.NewNetworkMonitor(n, monitorCfg, deps, logger)
	}
	supervisor := services.NewSupervisor(monitors, logger)

	server := newOpsServer(cfg.Forwarder.OpsPort, supervisor, dbChecker, redisChecker, logger)
	go func() {
		logger.Info("Ops server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Ops server error", zap.Error(err))
		}
	}()

	runErr := make(chan error, 1)
	go func() { runErr <- supervisor.Run(ctx) }()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal, stopping monitors...")
		err = <-runErr
	case err = <-runErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		logger.Error("Ops server shutdown error", zap.Error(serr))
	}

	if err != nil {
		logger.Fatal("Every network monitor halted", zap.Error(err))
	}
	logger.Info("Forwarder stopped")
}

func newOpsServer(port int, supervisor *services.Supervisor, db, redis handlers.HealthChecker, logger *zap.Logger) *http.Server {
	healthHandler := handlers.NewHealthHandler(
		handlers.Check{Name: "monitors", Checker: supervisor, Critical: true},
		handlers.Check{Name: "database", Checker: db},
		handlers.Check{Name: "redis", Checker: redis},
	)
	monitorHandler := handlers.NewMonitorHandler(supervisor)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics("ops"))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/live", healthHandler.Live)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", monitorHandler.RegisterRoutes)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
