package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"arc-framework/beacon/internal/config"

	"github.com/spf13/cobra"
)

var watchConfig bool

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Beacon HTTP API server",
	Long: `Start the Beacon HTTP server on the configured port (default :8090).

The server exposes the readiness API and, unless disabled, starts a run
immediately. It shuts down cleanly on SIGTERM or SIGINT.`,
	RunE: runServer,
}

func init() {
	serverCmd.Flags().BoolVar(&watchConfig, "watch", false, "reload the service list when the config file changes")
}

func runServer(cmd *cobra.Command, args []string) error {
	defer app.shutdown()

	ctx := cmd.Context()

	if watchConfig {
		if err := config.Watch(cfgFile, reloadProbes); err != nil {
			return &exitError{code: exitConfigError, err: fmt.Errorf("watching config: %w", err)}
		}
		slog.Info("watching config for changes", "path", cfgFile)
	}

	if cfg.Server.RunOnStart {
		if _, err := app.orchestrator.Start(ctx, app.probes.Probes()); err != nil {
			slog.Warn("initial readiness run rejected", "err", err)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      app.router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("beacon server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped cleanly")
	return nil
}

// reloadProbes swaps in the services from a changed config file. An invalid
// file leaves the current probe set in place.
func reloadProbes(c *config.Config, err error) {
	if err != nil {
		slog.Warn("config reload failed, keeping current services", "err", err)
		return
	}
	probes := c.Readiness.Probes()
	if err := app.orchestrator.Validate(probes); err != nil {
		slog.Warn("reloaded config is invalid, keeping current services", "err", err)
		return
	}
	app.probes.Store(probes)
	slog.Info("services reloaded", "services", len(probes))
}
