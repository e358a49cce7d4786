// Package main provides the entry point for the ellipsis render service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JoobyPM/ellipsis-render/internal/config"
	"github.com/JoobyPM/ellipsis-render/internal/httpapi"
	"github.com/JoobyPM/ellipsis-render/internal/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		configPath = flag.String("config", "", "config file path (skips global/project discovery)")
		listen     = flag.String("listen", "", "listen address (overrides config)")
		logLevel   = flag.String("log-level", "", "log level: debug, info, warn, error")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, config.CLIOverrides{Listen: *listen, LogLevel: *logLevel}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, overrides config.CLIOverrides) error {
	cfg, err := config.Load(config.LoadOptions{ExplicitPath: configPath})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyCLIOverrides(overrides)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	s := &httpapi.Server{Config: cfg, Logger: logger}
	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           httpapi.RequestLogger(logger, s.Routes()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       config.Duration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout:      config.Duration(cfg.Server.WriteTimeout, 15*time.Second),
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting ellipsis render service",
			"listen", cfg.Server.Listen,
			"cutoff", cfg.Renderer.Cutoff,
			"columns", len(cfg.Columns),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
