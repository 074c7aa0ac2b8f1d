package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"eddlicense/internal/config"
)

// InstrumentationName names the meter and tracer of the HTTP layer.
const InstrumentationName = "eddlicense"

// Telemetry holds the OpenTelemetry providers of the process.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	// MetricsHandler serves the Prometheus exposition of MeterProvider.
	MetricsHandler http.Handler

	logger *slog.Logger
}

// TelemetryOption customises InitializeOTel.
type TelemetryOption func(*telemetryOptions)

type telemetryOptions struct {
	traceWriter io.Writer
	registry    *promclient.Registry
}

// WithTraceWriter directs the stdout trace exporter to w.
func WithTraceWriter(w io.Writer) TelemetryOption {
	return func(o *telemetryOptions) {
		o.traceWriter = w
	}
}

// WithRegistry collects metrics into reg instead of a fresh registry.
func WithRegistry(reg *promclient.Registry) TelemetryOption {
	return func(o *telemetryOptions) {
		o.registry = reg
	}
}

// InitializeOTel sets up tracing and metrics and installs them as the global
// providers. Disabled signals keep the no-op defaults.
func InitializeOTel(ctx context.Context, cfg config.TelemetryConfig, version string, logger *slog.Logger, opts ...TelemetryOption) (*Telemetry, error) {
	o := telemetryOptions{traceWriter: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(version),
		semconv.DeploymentEnvironment(cfg.Environment),
		attribute.String("service.instance.id", GenerateTraceID()),
	)

	t := &Telemetry{logger: logger}

	if cfg.EnableTracing {
		if err := t.initTracing(cfg, res, o.traceWriter); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	if cfg.EnableMetrics {
		if err := t.initMetrics(res, o.registry); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.String("trace_exporter", cfg.TraceExporter),
		slog.Bool("metrics_enabled", cfg.EnableMetrics),
	)

	return t, nil
}

func (t *Telemetry) initTracing(cfg config.TelemetryConfig, res *resource.Resource, w io.Writer) error {
	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	}

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	case "none", "":
		// Spans are still created so logs can be correlated.
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	t.TracerProvider = sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(t.TracerProvider)
	return nil
}

func (t *Telemetry) initMetrics(res *resource.Resource, reg *promclient.Registry) error {
	if reg == nil {
		reg = promclient.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	t.MeterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	t.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	otel.SetMeterProvider(t.MeterProvider)
	return nil
}

// Meter returns a named meter, or a no-op meter when metrics are disabled.
func (t *Telemetry) Meter(name string) metric.Meter {
	if t == nil || t.MeterProvider == nil {
		return noop.NewMeterProvider().Meter(name)
	}
	return t.MeterProvider.Meter(name)
}

// Shutdown flushes and stops the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}

	var errs []error
	if t.TracerProvider != nil {
		if err := t.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if t.MeterProvider != nil {
		if err := t.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	t.logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

// HTTPMetrics are the request instruments recorded by the HTTP middleware.
type HTTPMetrics struct {
	RequestsTotal   metric.Int64Counter
	RequestDuration metric.Float64Histogram
	ActiveRequests  metric.Int64UpDownCounter
}

// NewHTTPMetrics creates the HTTP request instruments on meter.
func NewHTTPMetrics(meter metric.Meter) (*HTTPMetrics, error) {
	requests, err := meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	active, err := meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{
		RequestsTotal:   requests,
		RequestDuration: duration,
		ActiveRequests:  active,
	}, nil
}
