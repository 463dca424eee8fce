package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bimakw/token-forwarder/internal/application/services"
	"github.com/bimakw/token-forwarder/internal/config"
	"github.com/bimakw/token-forwarder/internal/infrastructure/cache"
	"github.com/bimakw/token-forwarder/internal/infrastructure/database"
	"github.com/bimakw/token-forwarder/internal/infrastructure/logging"
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

	logger := logging.New(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting token-forwarder history API",
		zap.Int("port", cfg.API.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := database.NewPostgresDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to prepare database schema", zap.Error(err))
	}

	// Connect to Redis cache (optional)
	var (
		redisCache   *cache.RedisCache
		cacheChecker handlers.HealthChecker
	)
	if cfg.Redis.Enabled {
		redisCache, err = cache.NewRedisCache(cfg.Redis, cfg.API.CacheTTL, logger)
		if err != nil {
			logger.Warn("Failed to connect to Redis, running without cache", zap.Error(err))
			redisCache = nil
		} else {
			defer redisCache.Close()
			cacheChecker = redisCache
		}
	}

	forwardRepo := database.NewForwardRepo(db.DB())
	forwardHandler := handlers.NewForwardHandler(services.NewForwardService(forwardRepo, redisCache, logger), logger)
	statsHandler := handlers.NewStatsHandler(services.NewStatsService(forwardRepo, redisCache, logger), logger)
	healthHandler := handlers.NewHealthHandler(
		handlers.Check{Name: "database", Checker: db, Critical: true},
		handlers.Check{Name: "cache", Checker: cacheChecker},
	)

	// Setup router
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics("api"))
	r.Use(chimiddleware.Recoverer)

	// Health endpoints (no rate limiting)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/live", healthHandler.Live)
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimiter(cfg.API.RateLimitRPS))
		forwardHandler.RegisterRoutes(r)
		statsHandler.RegisterRoutes(r)
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	// Run server in goroutine
	go func() {
		logger.Info("API server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	logger.Info("Received shutdown signal, shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped")
}
