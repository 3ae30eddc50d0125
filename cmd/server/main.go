package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/faers-signal-server/internal/api"
	"github.com/faers-signal-server/internal/cache"
	"github.com/faers-signal-server/internal/config"
	"github.com/faers-signal-server/internal/database"
	"github.com/faers-signal-server/internal/repository"
	"github.com/faers-signal-server/internal/service"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Apply schema migrations before opening the pool
	migrator, err := database.NewMigrationRunner(configManager.GetDatabaseURL(), cfg.Database.MigrationsPath, logger)
	if err != nil {
		log.Fatalf("Failed to create migration runner: %v", err)
	}
	if err := migrator.Up(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	if err := migrator.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close migration runner")
	}

	// Connect to the report database
	db, err := database.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Pin the report snapshot
	store, err := repository.NewPostgresReportStore(ctx, db.Pool, logger)
	if err != nil {
		log.Fatalf("Failed to initialize report store: %v", err)
	}

	deps := map[string]api.HealthChecker{
		"database": db,
	}

	// Optional Redis run cache
	var runCache *cache.RunCache
	if cfg.Cache.Enabled {
		runCache, err = cache.NewRunCache(cfg.Cache, logger)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer runCache.Close()
		deps["cache"] = healthFunc(runCache.Ping)
	}

	detector, err := service.NewDetectionService(store, cfg.Analysis, logger)
	if err != nil {
		log.Fatalf("Failed to build detection service: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
		"snapshot_id": store.SnapshotID(),
	}).Info("Starting FAERS signal server")

	server := api.NewServer(*cfg, detector, store, runCache, deps, logger)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}

	logger.Info("Server stopped")
}

// healthFunc adapts a ping function to the readiness-check interface.
type healthFunc func(ctx context.Context) error

func (f healthFunc) Health(ctx context.Context) error {
	return f(ctx)
}

// setupLogger configures the application logger from the logging section.
func setupLogger(level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if strings.ToLower(format) == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return logger
}
