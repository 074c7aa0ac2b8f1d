// Package app wires the license status service together and manages its
// lifecycle.
//
// # Initialization Flow
//
//	1. Build the JSON logger from the logging config
//	2. Initialize OpenTelemetry (Prometheus metrics, optional tracing)
//	3. Create the status cache (in-memory or Redis)
//	4. Create the license validator and the services on top of it
//	5. Mount the HTTP handlers behind the middleware chain
//
// # Usage
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	application, err := app.NewApplication(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// Run returns once ctx is cancelled and in-flight requests have finished,
// after flushing telemetry and closing the cache. The package never calls
// os.Exit.
package app
