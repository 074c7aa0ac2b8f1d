package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"eddlicense/internal/app"
	"eddlicense/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("licensed", flag.ContinueOnError)
	fs.SetOutput(stdout)
	configPath := fs.String("config", "", "YAML configuration file (overrides $"+config.ConfigFileEnv+")")
	showEnv := fs.Bool("env", false, "print the environment variables understood by the service and exit")
	showVersion := fs.Bool("version", false, "print the version and exit")
	checkKey := fs.String("check", "", "resolve the status of one license key, print it as JSON and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *showVersion:
		_, err := fmt.Fprintf(stdout, "%s %s\n", app.AppName, app.Version)
		return err
	case *showEnv:
		return config.Usage(stdout)
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFrom(*configPath, true)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	application, err := app.NewApplication(ctx, cfg)
	if err != nil {
		return err
	}

	if *checkKey != "" {
		defer application.Close(context.Background())

		resp, err := application.LicenseService.GetStatus(ctx, *checkKey)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	return application.Run(ctx)
}
