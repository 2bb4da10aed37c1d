package api

import (
	"context"
	"log/slog"
	"net/http"

	"arc-framework/beacon/internal/readiness"

	"github.com/gin-gonic/gin"
)

// Router wraps a configured Gin engine and exposes it as an http.Handler.
type Router struct {
	engine *gin.Engine
}

// NewRouter constructs a Router with the full middleware chain and all routes
// registered. Middleware order:
//  1. Recovery: panic → 500
//  2. OTEL: trace context per request
//  3. RequestLogger: structured request/response logging
//
// deep executes the single attempts behind /health/deep. Runs started over
// the API stop when ctx is cancelled.
func NewRouter(ctx context.Context, o orchestratorService, probes ProbeSource, deep readiness.Executor, serviceName string) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(Recovery(slog.Default()))
	engine.Use(OTEL(serviceName))
	engine.Use(RequestLogger(slog.Default()))

	h := &Handler{ctx: ctx, orchestrator: o, probes: probes, deep: deep}

	v1 := engine.Group("/api/v1")
	v1.POST("/readiness", h.StartRun)
	v1.GET("/readiness", h.LastReport)

	engine.GET("/health", h.Health)
	engine.GET("/health/deep", h.DeepHealth)
	engine.GET("/ready", h.Ready)

	return &Router{engine: engine}
}

// Handler returns the underlying http.Handler for use with net/http servers.
func (r *Router) Handler() http.Handler {
	return r.engine
}
