// Standalone signal server backed by an embedded SQLite report store.
// Requires no Postgres or Redis; reports are imported from a JSON file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/faers-signal-server/internal/api"
	"github.com/faers-signal-server/internal/config"
	"github.com/faers-signal-server/internal/domain"
	"github.com/faers-signal-server/internal/repository"
	"github.com/faers-signal-server/internal/service"
	"github.com/faers-signal-server/pkg/export"
)

func main() {
	importPath := flag.String("import", "", "JSON file of reports to load into the store before serving")
	exportRun := flag.Bool("export", false, "run a full analysis, write it as CSV to the export directory and exit")
	signalsOnly := flag.Bool("signals-only", false, "restrict -export output to classified signals")
	flag.Parse()

	cfg := config.LoadLiteConfig()
	if err := cfg.Analysis.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)

	store, err := repository.NewSQLiteReportStore(cfg.StoreDBPath())
	if err != nil {
		log.Fatalf("Failed to open report store: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *importPath != "" {
		if err := importReports(ctx, store, *importPath, logger); err != nil {
			log.Fatalf("Failed to import reports: %v", err)
		}
	}

	detector, err := service.NewDetectionService(store, cfg.Analysis, logger)
	if err != nil {
		log.Fatalf("Failed to build detection service: %v", err)
	}

	if *exportRun {
		if err := exportAnalysis(ctx, detector, cfg, *signalsOnly, logger); err != nil {
			log.Fatalf("Failed to export analysis: %v", err)
		}
		return
	}

	serverCfg := domain.Config{
		Server: domain.ServerConfig{
			Host: cfg.HTTPHost,
			Port: cfg.HTTPPort,
		},
		Logging: domain.LoggingConfig{
			Level:  cfg.LogLevel,
			Format: cfg.LogFormat,
		},
		Analysis: cfg.Analysis,
	}

	deps := map[string]api.HealthChecker{
		"store": store,
	}

	logger.WithFields(logrus.Fields{
		"host":        cfg.HTTPHost,
		"port":        cfg.HTTPPort,
		"db_path":     cfg.StoreDBPath(),
		"snapshot_id": store.SnapshotID(),
	}).Info("Starting FAERS signal server (lite mode)")

	server := api.NewServer(serverCfg, detector, store, nil, deps, logger)

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

// exportAnalysis performs one full run and writes the ranked pairs as CSV
// into the export directory.
func exportAnalysis(ctx context.Context, detector *service.DetectionService, cfg *config.LiteConfig, signalsOnly bool, logger *logrus.Logger) error {
	result, err := detector.Run(ctx, service.RunParams{SignalsOnly: signalsOnly})
	if err != nil {
		return err
	}

	path := filepath.Join(cfg.ExportDir(), "signals_"+result.RunID+".csv")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := export.WriteCSV(f, result, export.Options{SignalsOnly: signalsOnly}); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"path":    path,
		"pairs":   len(result.Scores),
		"signals": result.SignalCount(),
	}).Info("Analysis exported")

	return nil
}

// importReports bulk-loads a JSON array of reports into the store.
func importReports(ctx context.Context, store *repository.SQLiteReportStore, path string, logger *logrus.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var reports []domain.Report
	if err := json.Unmarshal(data, &reports); err != nil {
		return err
	}

	if err := store.Load(ctx, reports); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"path":    path,
		"reports": len(reports),
	}).Info("Reports imported")

	return nil
}

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
