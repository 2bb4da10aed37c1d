package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"arc-framework/beacon/internal/readiness"

	"github.com/gin-gonic/gin"
)

// orchestratorService is the subset of *readiness.Orchestrator used by the
// HTTP handlers. Declaring it as an interface allows test doubles to be injected.
type orchestratorService interface {
	Start(ctx context.Context, probes []readiness.ServiceProbe) (<-chan *readiness.Report, error)
	IsRunInProgress() bool
	IsReady() bool
	LastReport() *readiness.Report
}

// ProbeSource yields the probe set to use for the next run.
type ProbeSource interface {
	Probes() []readiness.ServiceProbe
}

// Handler holds the dependencies shared across all HTTP handlers.
type Handler struct {
	// ctx bounds background runs; cancelling it finalises them as cancelled.
	ctx          context.Context
	orchestrator orchestratorService
	probes       ProbeSource
	deep         readiness.Executor
}

// StartRun handles POST /api/v1/readiness.
// It returns 202 when a new run is started in the background, 409 if one is
// already in progress and 422 if the current probe set is invalid.
func (h *Handler) StartRun(c *gin.Context) {
	if h.orchestrator.IsRunInProgress() {
		c.JSON(http.StatusConflict, gin.H{"status": "in-progress"})
		return
	}

	ctx := h.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := h.orchestrator.Start(ctx, h.probes.Probes()) //nolint:contextcheck
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
	case errors.Is(err, readiness.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"status": "in-progress"})
	case readiness.IsConfigurationError(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"status": "invalid", "error": err.Error()})
	default:
		slog.WarnContext(c.Request.Context(), "readiness run rejected", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
	}
}

// LastReport handles GET /api/v1/readiness.
// It returns the last completed report, or 404 before the first run.
func (h *Handler) LastReport(c *gin.Context) {
	report := h.orchestrator.LastReport()
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"status":     "no-report",
			"inProgress": h.orchestrator.IsRunInProgress(),
		})
		return
	}
	c.JSON(http.StatusOK, report)
}

// Health handles GET /health.
// It always returns 200; this is the liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"mode":   "shallow",
	})
}

// DeepHealth handles GET /health/deep.
// It issues one attempt per configured service through the circuit-breaking
// executor and returns 200 only when every attempt succeeded.
func (h *Handler) DeepHealth(c *gin.Context) {
	attempts := readiness.CheckOnce(c.Request.Context(), h.deep, h.probes.Probes())

	allOK := len(attempts) > 0
	for _, a := range attempts {
		if a.Outcome != readiness.OutcomeSuccess {
			allOK = false
			break
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !allOK {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":   status,
		"services": attempts,
	})
}

// Ready handles GET /ready.
// It returns 200 only after a run in which every service became ready.
func (h *Handler) Ready(c *gin.Context) {
	if h.orchestrator.IsReady() {
		c.JSON(http.StatusOK, gin.H{"ready": true})
		return
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
}
