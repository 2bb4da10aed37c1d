package readiness

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/sync/errgroup"
)

const instrumentationName = "arc-beacon"

var tracer = otel.Tracer(instrumentationName)

// DefaultHistoryLimit is the number of attempts retained per service.
const DefaultHistoryLimit = 10

type instruments struct {
	attempts metric.Int64Counter
	duration metric.Float64Histogram
}

func newInstruments() instruments {
	meter := otel.Meter(instrumentationName)
	fallback := noop.NewMeterProvider().Meter(instrumentationName)

	attempts, err := meter.Int64Counter("beacon.probe.attempts",
		metric.WithDescription("Probe attempts by service and outcome"))
	if err != nil {
		attempts, _ = fallback.Int64Counter("beacon.probe.attempts")
	}
	duration, err := meter.Float64Histogram("beacon.probe.duration",
		metric.WithDescription("Probe attempt duration"),
		metric.WithUnit("ms"))
	if err != nil {
		duration, _ = fallback.Float64Histogram("beacon.probe.duration")
	}
	return instruments{attempts: attempts, duration: duration}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithGlobalTimeout bounds the wall-clock time of a whole run. Zero disables
// the global bound; per-service deadlines still apply.
func WithGlobalTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.globalTimeout = d }
}

// WithHistoryLimit sets how many attempts are kept per service. Values <= 0
// keep every attempt.
func WithHistoryLimit(n int) Option {
	return func(o *Orchestrator) { o.historyLimit = n }
}

// WithKinds overrides the set of probe kinds accepted by Validate.
func WithKinds(kinds map[Kind]bool) Option {
	return func(o *Orchestrator) { o.kinds = kinds }
}

// Orchestrator runs one poller per probe and aggregates the results.
type Orchestrator struct {
	exec          Executor
	kinds         map[Kind]bool
	globalTimeout time.Duration
	historyLimit  int
	inst          instruments

	runInProgress atomic.Bool
	lastReport    *Report
	reportMu      sync.RWMutex
}

// New constructs an Orchestrator. When exec is a *Dispatcher its registered
// kinds are used for validation unless WithKinds is given.
func New(exec Executor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		exec:         exec,
		historyLimit: DefaultHistoryLimit,
		inst:         newInstruments(),
	}
	if d, ok := exec.(interface{ Kinds() map[Kind]bool }); ok {
		o.kinds = d.Kinds()
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run validates probes, then polls every service concurrently until each one
// is ready, its own deadline passes, or the global timeout fires. A failing
// service never cancels the others. The only errors returned are a
// *ConfigurationError and ErrRunInProgress; probe failures are reported in
// the Report.
func (o *Orchestrator) Run(ctx context.Context, probes []ServiceProbe) (*Report, error) {
	if err := o.claim(probes); err != nil {
		return nil, err
	}
	defer o.runInProgress.Store(false)
	return o.run(ctx, probes), nil
}

// Start is Run in the background. Validation and the in-progress check
// happen before it returns, so a nil error means the run owns the slot. The
// returned channel yields the report once every service is terminal.
func (o *Orchestrator) Start(ctx context.Context, probes []ServiceProbe) (<-chan *Report, error) {
	if err := o.claim(probes); err != nil {
		return nil, err
	}
	done := make(chan *Report, 1)
	go func() {
		report := func() *Report {
			defer o.runInProgress.Store(false)
			return o.run(ctx, probes)
		}()
		done <- report
	}()
	return done, nil
}

func (o *Orchestrator) claim(probes []ServiceProbe) error {
	if err := o.Validate(probes); err != nil {
		return err
	}
	if !o.runInProgress.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, probes []ServiceProbe) *Report {
	runID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "beacon.readiness")
	defer span.End()
	span.SetAttributes(
		attribute.String("readiness.run_id", runID),
		attribute.Int("readiness.services", len(probes)),
	)

	if o.globalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.globalTimeout)
		defer cancel()
	}

	slog.InfoContext(ctx, "readiness run started", "run_id", runID, "services", len(probes))

	// One slot per probe: each poller writes only its own index.
	results := make([]ServiceReadiness, len(probes))
	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			results[i] = o.poll(ctx, p)
			return nil
		})
	}
	// Pollers never return errors.
	_ = g.Wait()

	report := &Report{
		RunID:       runID,
		GeneratedAt: time.Now(),
		Order:       make([]string, 0, len(probes)),
		Services:    make(map[string]ServiceReadiness, len(probes)),
	}
	for _, sr := range results {
		if !sr.State.Terminal() {
			sr.fail(ReasonGlobalDeadline)
		}
		report.Order = append(report.Order, sr.Name)
		report.Services[sr.Name] = sr
	}
	report.OverallReady = overallReady(report.Services)

	span.SetAttributes(attribute.Bool("readiness.overall_ready", report.OverallReady))
	if report.OverallReady {
		span.SetStatus(codes.Ok, "")
		slog.InfoContext(ctx, "readiness run completed", "run_id", runID, "ready", true)
	} else {
		span.SetStatus(codes.Error, "one or more services not ready")
		slog.WarnContext(ctx, "readiness run completed with failures",
			"run_id", runID, "ready", false, "failed", report.Failed())
	}

	o.reportMu.Lock()
	o.lastReport = report
	o.reportMu.Unlock()

	return report
}

// Validate checks probes against the kinds this orchestrator can execute.
func (o *Orchestrator) Validate(probes []ServiceProbe) error {
	return Validate(probes, o.kinds)
}

// CheckOnce issues a single attempt per probe concurrently and returns the
// attempts keyed by service name. It does not poll or validate.
func CheckOnce(ctx context.Context, exec Executor, probes []ServiceProbe) map[string]ProbeAttempt {
	attempts := make([]ProbeAttempt, len(probes))
	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			attempts[i] = exec.Execute(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]ProbeAttempt, len(probes))
	for i, p := range probes {
		out[p.Name] = attempts[i]
	}
	return out
}

// IsRunInProgress returns true while a run is active.
func (o *Orchestrator) IsRunInProgress() bool {
	return o.runInProgress.Load()
}

// IsReady returns true if the last completed run was overall ready.
func (o *Orchestrator) IsReady() bool {
	o.reportMu.RLock()
	defer o.reportMu.RUnlock()
	return o.lastReport != nil && o.lastReport.OverallReady
}

// LastReport returns the report of the last completed run, or nil.
func (o *Orchestrator) LastReport() *Report {
	o.reportMu.RLock()
	defer o.reportMu.RUnlock()
	return o.lastReport
}
