package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

// Health states
const (
	HealthStatusHealthy   = "healthy"
	HealthStatusUnhealthy = "unhealthy"
)

// CachePinger is implemented by cache backends that live outside the process.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// CacheStatter is implemented by cache backends that report usage statistics.
type CacheStatter interface {
	Stats() map[string]interface{}
}

// HealthService provides health check functionality
type HealthService struct {
	version      string
	cacheBackend string
	cache        any
	startTime    time.Time
	logger       *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Uptime    string                   `json:"uptime"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// NewHealthService creates a health service. cache may implement CachePinger
// and CacheStatter; backendName is reported as is.
func NewHealthService(version, backendName string, cache any, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:      version,
		cacheBackend: backendName,
		cache:        cache,
		startTime:    time.Now(),
		logger:       logger.With(slog.String("service", "health")),
	}
}

// LivenessCheck reports that the process is serving.
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   hs.version,
		Uptime:    time.Since(hs.startTime).Round(time.Second).String(),
	}
}

// ReadinessCheck additionally probes the status cache.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := hs.LivenessCheck(ctx)
	status.Runtime = map[string]interface{}{
		"go_version": runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
	}

	cache := hs.checkCacheHealth(ctx)
	status.Services = map[string]ServiceHealth{"cache": cache}
	if cache.Status != HealthStatusHealthy {
		status.Status = HealthStatusUnhealthy
	}
	return status
}

func (hs *HealthService) checkCacheHealth(ctx context.Context) ServiceHealth {
	health := ServiceHealth{
		Status:  HealthStatusHealthy,
		Details: map[string]interface{}{"backend": hs.cacheBackend},
	}

	if pinger, ok := hs.cache.(CachePinger); ok {
		if err := pinger.Ping(ctx); err != nil {
			hs.logger.WarnContext(ctx, "cache health check failed",
				slog.String("backend", hs.cacheBackend),
				slog.String("error", err.Error()),
			)
			health.Status = HealthStatusUnhealthy
			health.Message = err.Error()
			return health
		}
	}
	if statter, ok := hs.cache.(CacheStatter); ok {
		for k, v := range statter.Stats() {
			health.Details[k] = v
		}
	}
	return health
}
