// Package api exposes the disproportionality analysis over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/faers-signal-server/internal/cache"
	"github.com/faers-signal-server/internal/domain"
	"github.com/faers-signal-server/internal/middleware"
	"github.com/faers-signal-server/internal/service"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	cfg      domain.Config
	detector *service.DetectionService
	runs     *cache.RunCache
	store    domain.ReportStore
	deps     map[string]HealthChecker
	log      *logrus.Logger
	router   *gin.Engine
	server   *http.Server
}

// NewServer creates a new HTTP server instance. The run cache may be nil
// when caching is disabled; deps lists the backing services checked by the
// readiness probe.
func NewServer(cfg domain.Config, detector *service.DetectionService, store domain.ReportStore, runs *cache.RunCache, deps map[string]HealthChecker, logger *logrus.Logger) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))

	server := &Server{
		cfg:      cfg,
		detector: detector,
		runs:     runs,
		store:    store,
		deps:     deps,
		log:      logger,
		router:   router,
	}

	server.setupRoutes()

	return server
}

// Router exposes the configured handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ready", s.handleReady)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/analysis/runs", s.handleRun)
		v1.GET("/analysis/pairs", s.handlePair)
	}
}

// handleHealth handles liveness checks.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// handleReady verifies the backing dependencies are reachable.
func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{}
	for name, dep := range s.deps {
		if err := dep.Health(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = err.Error()
		} else {
			checks[name] = "ok"
		}
	}

	c.JSON(status, gin.H{
		"status":      readyStatus(status),
		"snapshot_id": s.store.SnapshotID(),
		"checks":      checks,
	})
}

func readyStatus(code int) string {
	if code == http.StatusOK {
		return "ready"
	}
	return "unavailable"
}
