package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"eddlicense/internal/config"
	"eddlicense/internal/infrastructure"
	"eddlicense/internal/license"
	customMiddleware "eddlicense/internal/middleware"
	"eddlicense/internal/services"
	handlers "eddlicense/internal/transport/http"
)

// AppName identifies the service in logs and telemetry.
const AppName = "eddlicense"

// Version is set at build time with -ldflags "-X eddlicense/internal/app.Version=...".
var Version = "dev"

// Application represents the main application container
type Application struct {
	Config    *config.Config
	Router    *chi.Mux
	Server    *http.Server
	Logger    *slog.Logger
	Telemetry *infrastructure.Telemetry

	Cache          license.StatusCache
	Validator      *license.Validator
	LicenseService services.LicenseService
	HealthService  *services.HealthService

	logFile   *infrastructure.Logger
	cacheStop func() error
}

// Option customises NewApplication.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	remote       license.RemoteClient
	redisClient  license.RedisClient
	telemetryOpt []infrastructure.TelemetryOption
}

// WithLogger uses logger instead of building one from the logging config.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRemoteClient replaces the licensing server client.
func WithRemoteClient(rc license.RemoteClient) Option {
	return func(o *options) { o.remote = rc }
}

// WithRedisClient uses client for the redis cache backend instead of dialing.
func WithRedisClient(client license.RedisClient) Option {
	return func(o *options) { o.redisClient = client }
}

// WithTelemetryOptions forwards opts to OpenTelemetry initialization.
func WithTelemetryOptions(opts ...infrastructure.TelemetryOption) Option {
	return func(o *options) { o.telemetryOpt = append(o.telemetryOpt, opts...) }
}

// NewApplication wires every component described by cfg. Resources acquired
// before a failure are released before returning.
func NewApplication(ctx context.Context, cfg *config.Config, opts ...Option) (app *Application, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	app = &Application{Config: cfg, Logger: o.logger}
	defer func() {
		if err != nil {
			_ = app.Close(context.Background())
			app = nil
		}
	}()

	if app.Logger == nil {
		logFile, err := infrastructure.NewLogger(cfg.Logging)
		if err != nil {
			return app, fmt.Errorf("failed to initialize logger: %w", err)
		}
		app.logFile = logFile
		app.Logger = logFile.Logger
		slog.SetDefault(app.Logger)
	}

	app.Logger.InfoContext(ctx, "Application starting",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.String("cache_backend", cfg.Cache.Backend),
	)

	app.Telemetry, err = infrastructure.InitializeOTel(ctx, cfg.Telemetry, Version, app.Logger, o.telemetryOpt...)
	if err != nil {
		return app, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	if err := app.initializeServices(ctx, o); err != nil {
		return app, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.setupRouter(); err != nil {
		return app, fmt.Errorf("failed to set up router: %w", err)
	}
	app.createServer()

	return app, nil
}

// initializeServices builds the cache, validator and services
func (a *Application) initializeServices(ctx context.Context, o options) error {
	if err := a.initializeCache(ctx, o); err != nil {
		return err
	}

	metrics, err := license.InitializeMetrics(a.Telemetry.Meter(license.MeterName))
	if err != nil {
		return fmt.Errorf("failed to create license metrics: %w", err)
	}

	lc := a.Config.License
	validatorOpts := []license.Option{license.WithMetrics(metrics)}
	if o.remote != nil {
		validatorOpts = append(validatorOpts, license.WithRemoteClient(o.remote))
	}

	a.Validator, err = license.NewValidator(license.Config{
		Server:             lc.Server,
		ItemName:           lc.ItemName,
		SiteURL:            lc.SiteURL,
		StatusTTL:          lc.StatusTTL(),
		ActivationTTL:      lc.ActivationTTL(),
		Timeout:            lc.Timeout,
		InsecureSkipVerify: lc.InsecureSkipVerify,
	}, a.Cache, a.Logger, validatorOpts...)
	if err != nil {
		return fmt.Errorf("failed to create license validator: %w", err)
	}

	if lc.InsecureSkipVerify {
		a.Logger.WarnContext(ctx, "TLS certificate verification of the licensing server is disabled",
			slog.String("server", lc.Server))
	}

	a.LicenseService = services.NewLicenseService(a.Validator, infrastructure.WithComponent(a.Logger, "license_service"))
	a.HealthService = services.NewHealthService(Version, a.Config.Cache.Backend, a.Cache, infrastructure.WithComponent(a.Logger, "health_service"))
	return nil
}

func (a *Application) initializeCache(ctx context.Context, o options) error {
	cc := a.Config.Cache

	switch cc.Backend {
	case "redis":
		var rc *license.RedisCache
		if o.redisClient != nil {
			rc = license.NewRedisCacheWithClient(o.redisClient, cc.Redis.Prefix, a.Logger)
		} else {
			var err error
			rc, err = license.NewRedisCache(ctx, license.RedisCacheConfig{
				Address:  cc.Redis.Address,
				Password: cc.Redis.Password,
				DB:       cc.Redis.DB,
				Prefix:   cc.Redis.Prefix,
			}, a.Logger)
			if err != nil {
				return fmt.Errorf("failed to connect to redis: %w", err)
			}
		}
		a.Cache = rc
		a.cacheStop = rc.Close
	default:
		mc := license.NewMemoryCache(license.WithSweepInterval(cc.SweepInterval))
		a.Cache = mc
		a.cacheStop = func() error {
			mc.Stop()
			return nil
		}
	}
	return nil
}

// setupRouter mounts the API behind the middleware chain
func (a *Application) setupRouter() error {
	r := chi.NewRouter()
	r.NotFound(customMiddleware.NotFound)
	r.MethodNotAllowed(customMiddleware.MethodNotAllowed)

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.Telemetry)
	if err != nil {
		return err
	}

	r.Group(func(r chi.Router) {
		r.Use(otelMiddleware.Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))

		if rl := a.Config.Security.RateLimit; rl.Enabled {
			r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger).Handler)
		}
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))

		r.Mount("/api/license", handlers.NewLicenseHandler(a.LicenseService, infrastructure.WithComponent(a.Logger, "license_handler")).Routes())
		r.Mount("/api/health", handlers.NewHealthHandler(a.HealthService, infrastructure.WithComponent(a.Logger, "health_handler")).Routes())
	})

	// Scrapes bypass rate limiting and request logging.
	if a.Telemetry.MetricsHandler != nil {
		r.Handle("/metrics", a.Telemetry.MetricsHandler)
	}

	a.Router = r
	return nil
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:           a.Router,
		ReadTimeout:       a.Config.Server.ReadTimeout,
		ReadHeaderTimeout: a.Config.Server.ReadTimeout,
		WriteTimeout:      a.Config.Server.WriteTimeout,
		IdleTimeout:       a.Config.Server.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(a.Logger.Handler(), slog.LevelError),
	}
}

// Run listens on the configured port and serves until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts the
// server down gracefully and releases every resource.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(ctx, "HTTP server listening", slog.String("addr", ln.Addr().String()))
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.Logger.InfoContext(context.Background(), "Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()

		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	serveErr := g.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Join(serveErr, a.Close(closeCtx))
}

// Close releases the cache, telemetry and log file. It is safe to call on a
// partially built Application.
func (a *Application) Close(ctx context.Context) error {
	var errs []error

	if a.cacheStop != nil {
		if err := a.cacheStop(); err != nil {
			errs = append(errs, fmt.Errorf("cache close: %w", err))
		}
		a.cacheStop = nil
	}
	if a.Telemetry != nil {
		if err := a.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		a.Telemetry = nil
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("log file close: %w", err))
		}
	}
	return errors.Join(errs...)
}
