package monitoring

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dallosh/analysis/pkg/config"
	"github.com/dallosh/analysis/pkg/logger"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "dallosh"

// Service encapsulates the OpenTelemetry meter and its Prometheus exporter.
type Service struct {
	meter       metric.Meter
	provider    *sdkmetric.MeterProvider
	registry    *prom.Registry
	initialized bool
}

func newDisabledService() *Service {
	return &Service{meter: noop.NewMeterProvider().Meter(meterName)}
}

// NewService creates the monitoring service. A disabled config yields a no-op meter.
func NewService(ctx context.Context, cfg config.MonitoringConfig) (*Service, error) {
	log := logger.FromContext(ctx)
	if !cfg.Enabled {
		log.Debug("Monitoring disabled, using no-op meter")
		return newDisabledService(), nil
	}
	registry := prom.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	log.Info("Monitoring service initialized")
	return &Service{
		meter:       provider.Meter(meterName),
		provider:    provider,
		registry:    registry,
		initialized: true,
	}, nil
}

// NewServiceWithFallback degrades to a no-op service when initialization fails.
func NewServiceWithFallback(ctx context.Context, cfg config.MonitoringConfig) *Service {
	service, err := NewService(ctx, cfg)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to initialize monitoring, using no-op implementation", "error", err)
		return newDisabledService()
	}
	return service
}

func (s *Service) Meter() metric.Meter {
	return s.meter
}

func (s *Service) IsInitialized() bool {
	return s.initialized
}

// ExporterHandler serves the Prometheus scrape endpoint.
func (s *Service) ExporterHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.initialized {
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, err := w.Write([]byte("Monitoring service not initialized")); err != nil {
				logger.FromContext(r.Context()).Error("Failed to write response", "error", err)
			}
			return
		}
		promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}

// SetAsGlobal installs the provider as the global OpenTelemetry meter provider.
func (s *Service) SetAsGlobal() {
	if s.provider != nil {
		otel.SetMeterProvider(s.provider)
	}
}

func (s *Service) Shutdown(ctx context.Context) error {
	if s.provider != nil {
		return s.provider.Shutdown(ctx)
	}
	return nil
}
