package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes the addon-domain instruments.
type Metrics struct {
	mutations       metric.Int64Counter
	transportErrors metric.Int64Counter
	catalogCache    metric.Int64Counter
	viewReloads     metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "mesa"
	}
	meter := provider.Meter(name)

	mutations, err := meter.Int64Counter("addon.mutations",
		metric.WithDescription("Addon assignment mutations by operation and outcome"))
	if err != nil {
		return nil, err
	}
	transportErrors, err := meter.Int64Counter("addon.transport_errors",
		metric.WithDescription("Classified remote addon service failures"))
	if err != nil {
		return nil, err
	}
	catalogCache, err := meter.Int64Counter("addon.catalog_cache",
		metric.WithDescription("Catalog cache lookups by result"))
	if err != nil {
		return nil, err
	}
	viewReloads, err := meter.Int64Counter("addon.view_reloads",
		metric.WithDescription("Working view reload+merge cycles"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		mutations:       mutations,
		transportErrors: transportErrors,
		catalogCache:    catalogCache,
		viewReloads:     viewReloads,
	}, nil
}

func (m *Metrics) RecordMutation(ctx context.Context, operation string, success bool) {
	if m == nil || m.mutations == nil {
		return
	}
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	m.mutations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) RecordTransportError(ctx context.Context, class string) {
	if m == nil || m.transportErrors == nil {
		return
	}
	m.transportErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("class", class),
	))
}

func (m *Metrics) RecordCatalogCache(ctx context.Context, hit bool) {
	if m == nil || m.catalogCache == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.catalogCache.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
	))
}

func (m *Metrics) RecordViewReload(ctx context.Context) {
	if m == nil || m.viewReloads == nil {
		return
	}
	m.viewReloads.Add(ctx, 1)
}

// HTTPMetrics instruments the inbound HTTP surface.
type HTTPMetrics struct {
	duration metric.Float64Histogram
	requests metric.Int64Counter
}

func NewHTTPMetrics(cfg Config, provider metric.MeterProvider) (*HTTPMetrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "mesa"
	}
	meter := provider.Meter(name + "/http")

	duration, err := meter.Float64Histogram("http.server.duration",
		metric.WithDescription("Inbound request duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	requests, err := meter.Int64Counter("http.server.requests",
		metric.WithDescription("Inbound requests by route and status"))
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{duration: duration, requests: requests}, nil
}

// GinMiddleware records request duration and count per route.
func GinMiddleware(h *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		attrs := metric.WithAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.String("http.status", fmt.Sprintf("%d", c.Writer.Status())),
		)
		ctx := c.Request.Context()
		h.duration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
		h.requests.Add(ctx, 1, attrs)
	}
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		return otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	case "", "grpc":
		return otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported otlp protocol %q", protocol)
	}
}
