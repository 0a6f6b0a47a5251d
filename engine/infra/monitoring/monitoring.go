package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/hookline/hookline/pkg/config"
	"github.com/hookline/hookline/pkg/logger"
)

const meterName = "hookline"

// Service owns the OpenTelemetry meter provider and its Prometheus exporter.
// When monitoring is disabled the service hands out a no-op meter so
// instrumented code never branches on the flag.
type Service struct {
	meter       metric.Meter
	exporter    *prometheus.Exporter
	provider    *sdkmetric.MeterProvider
	registry    *prom.Registry
	config      *config.MonitoringConfig
	initialized bool
}

func newDisabledService(cfg *config.MonitoringConfig) *Service {
	return &Service{
		config:      cfg,
		meter:       noop.NewMeterProvider().Meter(meterName),
		initialized: false,
	}
}

// NewService creates the monitoring service, wiring the Prometheus exporter
// as an OpenTelemetry metric reader.
func NewService(ctx context.Context, cfg *config.MonitoringConfig) (*Service, error) {
	log := logger.FromContext(ctx)
	if cfg == nil {
		return nil, fmt.Errorf("monitoring config is required")
	}
	if err := validatePath(cfg.Path); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		log.Debug("monitoring disabled, using no-op meter")
		return newDisabledService(cfg), nil
	}
	registry := prom.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	service := &Service{
		meter:       provider.Meter(meterName),
		exporter:    exporter,
		provider:    provider,
		registry:    registry,
		config:      cfg,
		initialized: true,
	}
	log.Info("monitoring service initialized", "path", cfg.Path)
	return service, nil
}

// NewServiceWithFallback never fails: exporter setup errors degrade to a
// disabled service so the rest of the process keeps running.
func NewServiceWithFallback(ctx context.Context, cfg *config.MonitoringConfig) *Service {
	service, err := NewService(ctx, cfg)
	if err != nil {
		logger.FromContext(ctx).Error("failed to initialize monitoring, continuing without it", "error", err)
		return newDisabledService(cfg)
	}
	return service
}

func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("monitoring path cannot be empty")
	}
	if path[0] != '/' {
		return fmt.Errorf("monitoring path must start with '/': got %s", path)
	}
	if strings.ContainsRune(path, '?') {
		return fmt.Errorf("monitoring path cannot contain query parameters")
	}
	return nil
}

// Meter returns the OpenTelemetry meter for custom instrumentation.
func (s *Service) Meter() metric.Meter {
	return s.meter
}

// Path returns the HTTP path the exporter is mounted under.
func (s *Service) Path() string {
	if s.config == nil {
		return "/metrics"
	}
	return s.config.Path
}

// IsInitialized reports whether the exporter pipeline is live.
func (s *Service) IsInitialized() bool {
	return s.initialized
}

// ExporterHandler returns the HTTP handler for the metrics endpoint.
func (s *Service) ExporterHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.initialized {
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, err := w.Write([]byte("monitoring service not initialized")); err != nil {
				logger.FromContext(r.Context()).Error("failed to write response", "error", err)
			}
			return
		}
		promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}

// Shutdown flushes and stops the meter provider.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.provider != nil {
		return s.provider.Shutdown(ctx)
	}
	return nil
}
