// Package main is the entry point for the Vaulty server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/olushako/vaulty/internal/config"
	"github.com/olushako/vaulty/internal/handlers"
	"github.com/olushako/vaulty/internal/metrics"
	"github.com/olushako/vaulty/internal/services"
	"github.com/olushako/vaulty/internal/store"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logLevel := slog.LevelInfo
	switch cfg.Security.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting Vaulty",
		"version", version,
		"env", cfg.Security.Environment,
	)
	if cfg.IsInsecureKey() {
		logger.Warn("ENCRYPTION_KEY is not set; using the well-known development key. " +
			"Secrets are NOT protected. Generate one with: openssl rand -hex 32")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open the embedded database
	logger.Info("opening database", "path", cfg.Database.Path)
	boltStore, err := store.NewBoltStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := boltStore.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	// Connect to Redis only when the rate limiter needs it
	var redisClient *redis.Client
	if cfg.RateLimit.Enabled {
		logger.Info("connecting to Redis")
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient = redis.NewClient(opt)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("failed to close redis client", "error", err)
			}
		}()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to ping Redis: %w", err)
		}
		logger.Info("connected to Redis")
	}

	// Initialize services
	authService := services.NewAuthService(boltStore)
	tokenService := services.NewTokenService(boltStore)
	projectService := services.NewProjectService(boltStore)
	secretService := services.NewSecretService(boltStore, cfg.Security.KeyMaterial)
	deviceService := services.NewDeviceService(boltStore, cfg.Security.KeyMaterial)
	activityService := services.NewActivityService(boltStore, cfg.Security.ActivityRetention)

	// Ensure the configured master token exists as the init token
	if err := tokenService.Bootstrap(ctx, cfg.Security.MasterToken); err != nil {
		return fmt.Errorf("failed to bootstrap master token: %w", err)
	}

	// Create router
	deps := &handlers.Dependencies{
		Config:          cfg,
		Store:           boltStore,
		Redis:           redisClient,
		Logger:          logger,
		AuthService:     authService,
		TokenService:    tokenService,
		ProjectService:  projectService,
		SecretService:   secretService,
		DeviceService:   deviceService,
		ActivityService: activityService,
	}

	router := handlers.NewRouter(deps)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.ServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Purge once at startup, then on the cleanup interval
	if n, err := activityService.Purge(ctx); err != nil {
		logger.Error("failed to purge old activities", "error", err)
	} else if n > 0 {
		logger.Info("purged old activities", "count", n)
	}

	go func() {
		ticker := time.NewTicker(cfg.Security.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := activityService.Purge(ctx); err != nil {
					logger.Error("failed to purge old activities", "error", err)
				} else if n > 0 {
					logger.Info("purged old activities", "count", n)
				}
			}
		}
	}()

	// Start metrics collector (every 30 seconds)
	go metrics.StartCollector(ctx, boltStore, 30*time.Second)

	// Start server in goroutine
	go func() {
		logger.Info("server listening",
			"addr", cfg.ServerAddr(),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
