package readiness

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// ReasonCancelled marks services stopped because the caller cancelled the run.
const ReasonCancelled = "run cancelled"

// poll drives one service from pending to a terminal state. It is the only
// writer of the returned ServiceReadiness.
//
// The run context only gates new attempts and interrupts the sleep between
// them; an attempt already in flight keeps running until its own per-attempt
// timeout so it never ends in a half-read state.
func (o *Orchestrator) poll(ctx context.Context, p ServiceProbe) ServiceReadiness {
	ctx, span := tracer.Start(ctx, "beacon.poll")
	defer span.End()
	span.SetAttributes(
		attribute.String("service.name", p.Name),
		attribute.String("service.kind", string(kindOf(p))),
	)

	start := time.Now()
	deadline := start.Add(p.OverallDeadline)
	sr := ServiceReadiness{
		Name:      p.Name,
		Kind:      kindOf(p),
		URL:       p.URL,
		State:     StatePending,
		StartedAt: start,
	}

	attemptCtx := context.WithoutCancel(ctx)

	for sr.State == StatePending {
		if err := ctx.Err(); err != nil {
			sr.fail(runReason(err))
			break
		}
		if !time.Now().Before(deadline) {
			sr.fail(ReasonServiceDeadline)
			break
		}

		attempt := o.exec.Execute(attemptCtx, p)
		o.record(ctx, &sr, p, attempt)

		// An attempt that outlived the run is kept for diagnosis only.
		if err := ctx.Err(); err != nil {
			sr.fail(runReason(err))
			break
		}
		if attempt.Outcome == OutcomeSuccess {
			readyAt := attempt.StartedAt.Add(attempt.Duration)
			sr.State = StateReady
			sr.ReadyAt = &readyAt
			break
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			continue
		}
		timer := time.NewTimer(min(p.PollInterval, remaining))
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
		timer.Stop()
	}

	span.SetAttributes(
		attribute.String("readiness.state", string(sr.State)),
		attribute.Int("readiness.attempts", sr.AttemptCount),
	)
	if sr.State == StateReady {
		span.SetStatus(codes.Ok, "")
		slog.InfoContext(ctx, "service ready",
			"service", sr.Name,
			"attempts", sr.AttemptCount,
			"elapsed_ms", sr.ReadyAt.Sub(start).Milliseconds(),
		)
	} else {
		span.SetStatus(codes.Error, sr.Reason)
		slog.WarnContext(ctx, "service not ready",
			"service", sr.Name,
			"attempts", sr.AttemptCount,
			"reason", sr.Reason,
			"last_error", sr.LastError(),
		)
	}
	return sr
}

// record appends an attempt, trimming history to the configured limit.
func (o *Orchestrator) record(ctx context.Context, sr *ServiceReadiness, p ServiceProbe, a ProbeAttempt) {
	sr.AttemptCount++
	sr.Attempts = append(sr.Attempts, a)
	if o.historyLimit > 0 && len(sr.Attempts) > o.historyLimit {
		sr.Attempts = append(sr.Attempts[:0:0], sr.Attempts[len(sr.Attempts)-o.historyLimit:]...)
	}

	attrs := metric.WithAttributes(
		attribute.String("service", p.Name),
		attribute.String("outcome", string(a.Outcome)),
	)
	o.inst.attempts.Add(ctx, 1, attrs)
	o.inst.duration.Record(ctx, float64(a.Duration)/float64(time.Millisecond), attrs)

	if a.Outcome != OutcomeSuccess {
		slog.DebugContext(ctx, "probe attempt failed",
			"service", p.Name,
			"attempt", sr.AttemptCount,
			"outcome", a.Outcome,
			"status_code", a.StatusCode,
			"error", a.Error,
		)
	}
}

// fail moves a pending service to StateFailed.
func (s *ServiceReadiness) fail(reason string) {
	if s.State.Terminal() {
		return
	}
	s.State = StateFailed
	s.Reason = reason
}

func runReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonGlobalDeadline
	}
	return ReasonCancelled
}

func kindOf(p ServiceProbe) Kind {
	if p.Kind == "" {
		return KindHTTP
	}
	return p.Kind
}
