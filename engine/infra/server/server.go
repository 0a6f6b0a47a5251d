// Package server exposes the operational HTTP endpoint: a health probe and,
// when monitoring is enabled, the Prometheus exporter. There is no CRUD API
// on this process; areas are managed directly in the store.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hookline/hookline/engine/infra/monitoring"
	"github.com/hookline/hookline/pkg/config"
	"github.com/hookline/hookline/pkg/logger"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
	statusUp       = "up"
	statusDown     = "down"

	httpReadTimeout    = 15 * time.Second
	httpWriteTimeout   = 15 * time.Second
	httpIdleTimeout    = 60 * time.Second
	shutdownTimeout    = 5 * time.Second
	healthCheckTimeout = 2 * time.Second
)

// Checker reports whether one backing dependency is reachable.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Config assembles the endpoint. Queue and Database are optional; a nil
// dependency is simply left out of the health report.
type Config struct {
	Server     *config.ServerConfig
	Monitoring *monitoring.Service
	Queue      Checker
	Database   Checker
	Version    string
}

type Server struct {
	cfg        Config
	router     *gin.Engine
	httpServer *http.Server
}

func New(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	s := &Server{cfg: cfg, router: router}
	router.GET("/healthz", s.handleHealth)
	if cfg.Monitoring != nil && cfg.Monitoring.IsInitialized() {
		router.GET(cfg.Monitoring.Path(), gin.WrapH(cfg.Monitoring.ExporterHandler()))
	}
	return s
}

// Router exposes the handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()
	status := statusHealthy
	components := gin.H{}
	checks := []struct {
		name string
		dep  Checker
	}{
		{"database", s.cfg.Database},
		{"queue", s.cfg.Queue},
	}
	for _, check := range checks {
		if check.dep == nil {
			continue
		}
		if err := check.dep.HealthCheck(ctx); err != nil {
			logger.FromContext(ctx).Warn("Health check failed", "component", check.name, "error", err)
			status = statusDegraded
			components[check.name] = gin.H{"status": statusDown, "error": err.Error()}
			continue
		}
		components[check.name] = gin.H{"status": statusUp}
	}
	code := http.StatusOK
	if status != statusHealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":     status,
		"version":    s.cfg.Version,
		"components": components,
	})
}

// Start serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  httpReadTimeout,
		WriteTimeout: httpWriteTimeout,
		IdleTimeout:  httpIdleTimeout,
	}
	log := logger.FromContext(ctx)
	log.Info("Starting HTTP server", "address", fmt.Sprintf("http://%s", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	log.Info("HTTP server stopped")
	return nil
}
