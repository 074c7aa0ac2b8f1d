package license

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	TracerName = "license-validator"
	MeterName  = "license-validator"
)

// Metrics holds the OpenTelemetry instruments of the validator. A nil
// *Metrics records nothing.
type Metrics struct {
	ResolveTotal    metric.Int64Counter
	ResolveDuration metric.Float64Histogram
	RemoteRequests  metric.Int64Counter
	RemoteDuration  metric.Float64Histogram
	CacheLookups    metric.Int64Counter
	CacheWriteFails metric.Int64Counter
}

// InitializeMetrics creates the license instruments on meter.
func InitializeMetrics(meter metric.Meter) (*Metrics, error) {
	metrics := &Metrics{}

	var err error

	metrics.ResolveTotal, err = meter.Int64Counter(
		"license_resolve_total",
		metric.WithDescription("Total number of license status resolutions by resulting status"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolve counter: %w", err)
	}

	metrics.ResolveDuration, err = meter.Float64Histogram(
		"license_resolve_duration_seconds",
		metric.WithDescription("License status resolution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolve duration histogram: %w", err)
	}

	metrics.RemoteRequests, err = meter.Int64Counter(
		"license_remote_requests_total",
		metric.WithDescription("Total number of requests sent to the licensing server"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create remote requests counter: %w", err)
	}

	metrics.RemoteDuration, err = meter.Float64Histogram(
		"license_remote_duration_seconds",
		metric.WithDescription("Licensing server round trip duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create remote duration histogram: %w", err)
	}

	metrics.CacheLookups, err = meter.Int64Counter(
		"license_cache_lookups_total",
		metric.WithDescription("Total number of license cache lookups by entry and result"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache lookups counter: %w", err)
	}

	metrics.CacheWriteFails, err = meter.Int64Counter(
		"license_cache_write_failures_total",
		metric.WithDescription("Total number of failed license cache writes"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache write failures counter: %w", err)
	}

	return metrics, nil
}

func (m *Metrics) recordResolve(ctx context.Context, status Status, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status.String()))
	m.ResolveTotal.Add(ctx, 1, attrs)
	m.ResolveDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *Metrics) recordRemote(ctx context.Context, action Action, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RemoteRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", string(action)),
		attribute.String("outcome", outcome),
	))
	m.RemoteDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("action", string(action)),
	))
}

func (m *Metrics) recordCacheLookup(ctx context.Context, entry string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entry", entry),
		attribute.String("result", result),
	))
}

func (m *Metrics) recordCacheWriteFailure(ctx context.Context, entry string) {
	if m == nil {
		return
	}
	m.CacheWriteFails.Add(ctx, 1, metric.WithAttributes(attribute.String("entry", entry)))
}

// classifyRemoteError names the failure kind for logs and metrics. Both kinds
// resolve to StatusNoResponse.
func classifyRemoteError(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "transport"
	}
}
