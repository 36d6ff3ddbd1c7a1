// Package metrics configures the OpenTelemetry meter provider and serves
// Prometheus scrapes.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"

	"github.com/fd1az/substrate-explorer/internal/logger"
)

type Exporter string

const (
	PrometheusExporter Exporter = "prometheus"
	OTLPExporter       Exporter = "otlp"
)

type Config struct {
	ServiceName string
	Exporters   []Exporter
	// OTLP collector settings, used by OTLPExporter.
	Endpoint string
	Headers  map[string]string
	Insecure bool
	Interval time.Duration
}

// Provider owns the meter provider and, when Prometheus is enabled, the
// registry scrapes read from.
type Provider struct {
	mp       *sdkmetric.MeterProvider
	registry *prom.Registry
}

// NewProvider builds the readers for cfg and installs the global meter
// provider.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	p := &Provider{}
	var opts []sdkmetric.Option

	for _, exp := range cfg.Exporters {
		switch exp {
		case PrometheusExporter:
			p.registry = prom.NewRegistry()
			p.registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			reader, err := otelprom.New(otelprom.WithRegisterer(p.registry))
			if err != nil {
				return nil, fmt.Errorf("prometheus exporter: %w", err)
			}
			opts = append(opts, sdkmetric.WithReader(reader))
		case OTLPExporter:
			grpcOpts := []otlpmetricgrpc.Option{
				otlpmetricgrpc.WithEndpointURL(cfg.Endpoint),
				otlpmetricgrpc.WithHeaders(cfg.Headers),
			}
			if cfg.Insecure {
				grpcOpts = append(grpcOpts, otlpmetricgrpc.WithInsecure())
			}
			exporter, err := otlpmetricgrpc.New(ctx, grpcOpts...)
			if err != nil {
				return nil, fmt.Errorf("otlp metric exporter: %w", err)
			}
			var readerOpts []sdkmetric.PeriodicReaderOption
			if cfg.Interval > 0 {
				readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
			}
			opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)))
		default:
			return nil, fmt.Errorf("unknown metrics exporter %q", exp)
		}
	}

	opts = append(opts, sdkmetric.WithResource(
		resource.NewSchemaless(semconv.ServiceNameKey.String(cfg.ServiceName)),
	))
	p.mp = sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(p.mp)
	return p, nil
}

// Handler serves the Prometheus registry. It answers 404 when Prometheus
// is not among the exporters.
func (p *Provider) Handler() http.Handler {
	if p.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Provider) Shutdown(ctx context.Context) error {
	return p.mp.Shutdown(ctx)
}

// Server exposes /metrics on its own port.
type Server struct {
	srv    *http.Server
	logger logger.LoggerInterface
}

func NewServer(port int, p *Provider, log logger.LoggerInterface) *Server {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", p.Handler())
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: log,
	}
}

// Start serves in the background.
func (s *Server) Start() {
	go func() {
		s.logger.Info(context.Background(), "serving metrics", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(context.Background(), "metrics server stopped", "error", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
