package license

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultStatusTTL is how long an authoritative status is reused.
	DefaultStatusTTL = 48 * time.Hour
	// DefaultActivationTTL is how long activation is not attempted again.
	DefaultActivationTTL = 365 * 24 * time.Hour
)

const markerValue = "1"

// Config is the licensing policy of a deployment.
type Config struct {
	Server             string
	ItemName           string
	SiteURL            string
	StatusTTL          time.Duration
	ActivationTTL      time.Duration
	Timeout            time.Duration
	InsecureSkipVerify bool
}

func (c Config) withDefaults() Config {
	if c.StatusTTL <= 0 {
		c.StatusTTL = DefaultStatusTTL
	}
	if c.ActivationTTL <= 0 {
		c.ActivationTTL = DefaultActivationTTL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultRequestTimeout
	}
	return c
}

// Validator resolves license statuses, calling the licensing server only
// when the cached state requires it. It is safe for concurrent use.
type Validator struct {
	cfg     Config
	cache   StatusCache
	remote  RemoteClient
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// Option configures a Validator.
type Option func(*Validator)

// WithRemoteClient replaces the HTTP client built from Config.
func WithRemoteClient(rc RemoteClient) Option {
	return func(v *Validator) {
		v.remote = rc
	}
}

// WithMetrics records validator metrics on m.
func WithMetrics(m *Metrics) Option {
	return func(v *Validator) {
		v.metrics = m
	}
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(v *Validator) {
		v.tracer = t
	}
}

// NewValidator creates a Validator backed by cache.
func NewValidator(cfg Config, cache StatusCache, logger *slog.Logger, opts ...Option) (*Validator, error) {
	if cache == nil {
		return nil, ErrNoCache
	}
	if logger == nil {
		logger = slog.Default()
	}

	v := &Validator{
		cfg:    cfg.withDefaults(),
		cache:  cache,
		logger: logger.With(slog.String("component", "license_validator")),
		tracer: otel.Tracer(TracerName),
	}
	for _, opt := range opts {
		opt(v)
	}

	if v.remote == nil {
		if v.cfg.Server == "" || v.cfg.ItemName == "" {
			return nil, ErrIncompleteConfig
		}
		v.remote = NewHTTPClient(ClientConfig{
			Server:             v.cfg.Server,
			ItemName:           v.cfg.ItemName,
			SiteURL:            v.cfg.SiteURL,
			Timeout:            v.cfg.Timeout,
			InsecureSkipVerify: v.cfg.InsecureSkipVerify,
		})
	}

	return v, nil
}

// ResolveStatus returns the status of license. Unreachable servers and
// unusable responses yield StatusNoResponse; the only error is ErrNoLicense.
func (v *Validator) ResolveStatus(ctx context.Context, license string) (Status, error) {
	key := NormalizeKey(license)
	if key == "" {
		return "", ErrNoLicense
	}
	handle := Handle(key)

	ctx, span := v.tracer.Start(ctx, "license.resolve",
		trace.WithAttributes(
			attribute.String("license.handle", handle),
			attribute.String("component", "license_validator"),
		),
	)
	defer span.End()

	start := time.Now()
	var status Status

	attempted := v.cache.HasRecent(ctx, tryKey(handle))
	v.metrics.recordCacheLookup(ctx, "activation_marker", attempted)

	if !attempted {
		status = v.activate(ctx, key, handle)
	} else if cached, ok := v.cachedStatus(ctx, handle); ok {
		status = cached
	} else {
		status = v.check(ctx, key, handle)
	}

	duration := time.Since(start)
	v.metrics.recordResolve(ctx, status, duration)

	span.SetAttributes(
		attribute.String("license.status", status.String()),
		attribute.Bool("license.activation_attempted", attempted),
	)
	if status == StatusNoResponse {
		span.SetStatus(codes.Error, "licensing server gave no usable response")
	} else {
		span.SetStatus(codes.Ok, "")
	}

	v.logger.DebugContext(ctx, "license status resolved",
		slog.String("handle", handle),
		slog.String("license_key", MaskLicenseKey(key)),
		slog.String("status", status.String()),
		slog.Bool("activation_attempted", attempted),
		slog.Duration("duration", duration),
	)

	return status, nil
}

func (v *Validator) cachedStatus(ctx context.Context, handle string) (Status, bool) {
	value, ok := v.cache.Get(ctx, statusKey(handle))
	status := Status(value)
	hit := ok && status.IsAuthoritative()
	v.metrics.recordCacheLookup(ctx, "status", hit)
	return status, hit
}

// activate sends activate_license. Only an invalid verdict is taken at face
// value; any other answer is confirmed by check, whose result is returned.
// The marker is written only when check reports valid or inactive, so any
// other outcome leaves activation to be retried on the next call.
func (v *Validator) activate(ctx context.Context, key, handle string) Status {
	status, ok := v.request(ctx, ActionActivate, key, handle)
	if !ok {
		return StatusNoResponse
	}

	if status == StatusInvalid {
		v.store(ctx, "status", statusKey(handle), string(StatusInvalid), v.cfg.StatusTTL)
		v.store(ctx, "activation_marker", tryKey(handle), markerValue, v.cfg.ActivationTTL)
		return StatusInvalid
	}

	checked := v.check(ctx, key, handle)
	if !checked.IsAuthoritative() {
		return StatusNoResponse
	}

	if checked != status {
		v.logger.InfoContext(ctx, "activation response superseded by check",
			slog.String("handle", handle),
			slog.String("activation_status", status.String()),
			slog.String("check_status", checked.String()),
		)
	}
	if checked == StatusValid || checked == StatusInactive {
		v.store(ctx, "activation_marker", tryKey(handle), markerValue, v.cfg.ActivationTTL)
	}
	return checked
}

// check sends check_license and caches an authoritative answer.
func (v *Validator) check(ctx context.Context, key, handle string) Status {
	status, ok := v.request(ctx, ActionCheck, key, handle)
	if !ok {
		return StatusNoResponse
	}
	v.store(ctx, "status", statusKey(handle), string(status), v.cfg.StatusTTL)
	return status
}

// request performs one round trip. ok is false when the answer must not be
// cached.
func (v *Validator) request(ctx context.Context, action Action, key, handle string) (Status, bool) {
	ctx, span := v.tracer.Start(ctx, "license.remote."+string(action),
		trace.WithAttributes(
			attribute.String("license.handle", handle),
			attribute.String("license.action", string(action)),
		),
	)
	defer span.End()

	start := time.Now()
	status, err := v.remote.Do(ctx, action, key)
	duration := time.Since(start)

	outcome := classifyRemoteError(err)
	if err == nil && !status.IsAuthoritative() {
		outcome = "no_response"
	}
	v.metrics.recordRemote(ctx, action, outcome, duration)
	span.SetAttributes(attribute.String("license.outcome", outcome))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		v.logger.WarnContext(ctx, "licensing server request failed",
			slog.String("action", string(action)),
			slog.String("handle", handle),
			slog.String("failure", outcome),
			slog.String("error", err.Error()),
			slog.Duration("duration", duration),
		)
		return StatusNoResponse, false
	}
	if !status.IsAuthoritative() {
		return StatusNoResponse, false
	}

	span.SetAttributes(attribute.String("license.status", status.String()))
	v.logger.InfoContext(ctx, "licensing server responded",
		slog.String("action", string(action)),
		slog.String("handle", handle),
		slog.String("status", status.String()),
		slog.Duration("duration", duration),
	)
	return status, true
}

func (v *Validator) store(ctx context.Context, entry, key, value string, ttl time.Duration) {
	if err := v.cache.Put(ctx, key, value, ttl); err != nil {
		v.metrics.recordCacheWriteFailure(ctx, entry)
		v.logger.ErrorContext(ctx, "failed to write license cache entry",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
