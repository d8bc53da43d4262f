package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gw2trader/tradepost/internal/adapters/datawars"
	"github.com/gw2trader/tradepost/internal/adapters/gw2"
	httpAdapter "github.com/gw2trader/tradepost/internal/adapters/http"
	"github.com/gw2trader/tradepost/internal/adapters/postgres"
	"github.com/gw2trader/tradepost/internal/config"
	"github.com/gw2trader/tradepost/internal/domain"
	"github.com/gw2trader/tradepost/internal/ports"
	"github.com/gw2trader/tradepost/internal/services"
	"github.com/gw2trader/tradepost/internal/worker"
)

func main() {
	// Initialize logger
	logger := initLogger()
	slog.SetDefault(logger)

	logger.Info("starting trading post scanner")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Create root context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Build and start application
	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}

	// Start application components
	if err := app.Start(ctx); err != nil {
		logger.Error("failed to start application", "error", err)
		os.Exit(1)
	}

	// Wait for shutdown signal
	waitForShutdown(ctx, cancel, app, logger)
}

func initLogger() *slog.Logger {
	logLevel := os.Getenv("LOG_LEVEL")
	logFormat := os.Getenv("LOG_FORMAT")

	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if logFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// Application holds all components
type Application struct {
	db         *postgres.DB
	httpServer *httpAdapter.Server
	watcher    *worker.Watcher
	logger     *slog.Logger
}

func buildApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	logger.Info("building application")

	// 1. Infrastructure Layer - Database
	db, err := postgres.NewDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}

	// 2. Infrastructure Layer - Repositories
	itemRepo := postgres.NewItemRepository(db)
	snapshotRepo := postgres.NewSnapshotRepository(db)
	orderBookRepo := postgres.NewOrderBookRepository(db)

	// 3. Infrastructure Layer - Market Data Sources
	catalogSource := datawars.NewClient(
		datawars.WithBaseURL(cfg.Sources.DatawarsBaseURL),
		datawars.WithTimeout(cfg.Sources.Timeout),
		datawars.WithRetry(cfg.Sources.MaxAttempts, cfg.Sources.RetryBase),
		datawars.WithLogger(logger),
	)

	officialSource := gw2.NewClient(
		gw2.WithBaseURL(cfg.Sources.GW2BaseURL),
		gw2.WithTimeout(cfg.Sources.Timeout),
		gw2.WithRetry(cfg.Sources.MaxAttempts, cfg.Sources.RetryBase),
		gw2.WithLogger(logger),
	)

	// 4. Service Layer
	statsService := services.NewStatsService(
		itemRepo,
		snapshotRepo,
		officialSource,
		logger,
	)

	refreshService := services.NewRefreshService(
		itemRepo,
		snapshotRepo,
		orderBookRepo,
		catalogSource,
		officialSource,
		statsService,
		cfg.Refresh,
		logger,
	)

	queryService := services.NewQueryService(
		itemRepo,
		snapshotRepo,
		orderBookRepo,
		logger,
	)

	// 5. Transport Layer - HTTP Server
	httpServer := httpAdapter.NewServer(
		cfg.Server,
		refreshService,
		queryService,
		statsService,
		officialSource,
		logger,
	)

	// 6. Background Workers
	var watcher *worker.Watcher
	if cfg.Watch.Enabled {
		watcher = worker.NewWatcher(
			refreshService,
			cfg.Watch,
			ports.RunOptions{
				Mode:        domain.RunQuick,
				DeepRefresh: true,
			},
			logger,
		)
	}

	logger.Info("application built successfully")

	return &Application{
		db:         db,
		httpServer: httpServer,
		watcher:    watcher,
		logger:     logger,
	}, nil
}

func (a *Application) Start(ctx context.Context) error {
	a.logger.Info("starting application components")

	// Start watcher in background when enabled
	if a.watcher != nil {
		go func() {
			if err := a.watcher.Start(ctx); err != nil {
				a.logger.Error("watcher error", "error", err)
			}
		}()
	}

	// Start HTTP server in background (will block until shutdown)
	go func() {
		if err := a.httpServer.Start(); err != nil {
			a.logger.Error("http server error", "error", err)
		}
	}()

	a.logger.Info("application started",
		"http_addr", a.httpServer.Addr(),
	)

	return nil
}

func (a *Application) Shutdown() {
	a.logger.Info("shutting down application")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop watcher first
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Error("failed to stop watcher", "error", err)
		}
	}

	// Stop HTTP server
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("failed to shutdown http server", "error", err)
	}

	// Close database connection
	a.db.Close()

	a.logger.Info("application shutdown complete")
}

func waitForShutdown(ctx context.Context, cancel context.CancelFunc, app *Application, logger *slog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
		app.Shutdown()
	case <-ctx.Done():
		app.Shutdown()
	}
}
