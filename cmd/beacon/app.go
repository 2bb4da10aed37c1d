package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"arc-framework/beacon/internal/api"
	"arc-framework/beacon/internal/clients"
	"arc-framework/beacon/internal/config"
	"arc-framework/beacon/internal/readiness"
	"arc-framework/beacon/internal/telemetry"
)

// AppContext holds all constructed application dependencies shared across
// subcommands. It is built once in PersistentPreRunE.
type AppContext struct {
	cfg          *config.Config
	otelProvider *telemetry.Provider
	dispatcher   *readiness.Dispatcher
	orchestrator *readiness.Orchestrator
	probes       *api.ProbeSet
	router       *api.Router
}

// buildAppContext constructs all application dependencies from cfg. ctx is
// the process lifetime; runs started over the API stop when it is cancelled.
//  1. Initialises the OTEL provider (best-effort, non-fatal)
//  2. Creates the probe dispatcher with every supported kind
//  3. Creates the orchestrator and the live probe set
//  4. Creates the HTTP router with a circuit-breaking deep health executor
func buildAppContext(ctx context.Context, cfg *config.Config) (*AppContext, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	app := &AppContext{cfg: cfg}

	// When OTLPEndpoint is empty telemetry is disabled entirely, which avoids
	// the SDK's periodic-reader noise when no collector is running locally.
	if cfg.Telemetry.OTLPEndpoint == "" {
		slog.Debug("OTEL telemetry disabled (no endpoint configured)")
	} else {
		tp, err := telemetry.InitProvider(
			ctx,
			cfg.Telemetry.OTLPEndpoint,
			cfg.Telemetry.ServiceName,
			cfg.Telemetry.OTLPInsecure,
		)
		if err != nil {
			slog.Warn("OTEL provider init failed, telemetry disabled", "err", err)
		} else {
			app.otelProvider = tp
			// Fan out: keep the local JSON handler and add OTEL logs.
			slog.SetDefault(slog.New(telemetry.NewTeeHandler(
				slog.Default().Handler(),
				tp.LogHandler,
			)))
		}
	}

	// Per-attempt timeouts come from each request context.
	app.dispatcher = clients.NewDispatcher(&http.Client{})
	app.orchestrator = app.newOrchestrator(cfg.Readiness.GlobalTimeout)
	app.probes = api.NewProbeSet(cfg.Readiness.Probes())
	app.router = api.NewRouter(
		ctx,
		app.orchestrator,
		app.probes,
		clients.NewBreakerExecutor(app.dispatcher),
		cfg.Telemetry.ServiceName,
	)

	return app, nil
}

func (a *AppContext) newOrchestrator(globalTimeout time.Duration) *readiness.Orchestrator {
	return readiness.New(a.dispatcher,
		readiness.WithGlobalTimeout(globalTimeout),
		readiness.WithHistoryLimit(a.cfg.Readiness.HistoryLimit),
	)
}

// shutdown flushes telemetry. Safe to call when OTEL is disabled.
func (a *AppContext) shutdown() {
	if a == nil || a.otelProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.otelProvider.Shutdown(ctx); err != nil {
		slog.Warn("OTEL shutdown error", "err", err)
	}
}
