package readiness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxBodyBytes caps how much of a response body is read for the predicate.
const maxBodyBytes = 64 << 10

// Executor performs exactly one attempt against a probe. Implementations
// never return errors; every failure is encoded in the ProbeAttempt.
type Executor interface {
	Execute(ctx context.Context, p ServiceProbe) ProbeAttempt
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, p ServiceProbe) ProbeAttempt

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, p ServiceProbe) ProbeAttempt {
	return f(ctx, p)
}

// HTTPExecutor issues a GET against the probe URL.
type HTTPExecutor struct {
	httpDo func(req *http.Request) (*http.Response, error)
}

// NewHTTPExecutor returns an executor using client, or http.DefaultClient
// when client is nil. Per-attempt timeouts come from the request context, so
// the client's own Timeout should be left unset.
func NewHTTPExecutor(client *http.Client) *HTTPExecutor {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPExecutor{httpDo: client.Do}
}

// Execute runs one GET bounded by p.PerAttemptTimeout.
func (e *HTTPExecutor) Execute(ctx context.Context, p ServiceProbe) ProbeAttempt {
	ctx, cancel := context.WithTimeout(ctx, p.PerAttemptTimeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return Finish(ctx, start, fmt.Errorf("building request: %w", err))
	}

	resp, err := e.httpDo(req)
	if err != nil {
		return Finish(ctx, start, err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if readErr != nil {
		return Finish(ctx, start, fmt.Errorf("reading body: %w", readErr))
	}

	attempt := Finish(ctx, start, nil)
	attempt.StatusCode = resp.StatusCode
	if !p.Accepts(resp.StatusCode, body) {
		attempt.Outcome = OutcomeHTTPError
		attempt.Error = fmt.Sprintf("unexpected response: HTTP %d", resp.StatusCode)
	}
	return attempt
}

// Finish builds a ProbeAttempt that started at start. A nil err is a
// success; otherwise the outcome is OutcomeTimeout when the attempt context
// expired and OutcomeNetworkError for anything else. Non-HTTP executors use
// it so all kinds classify failures the same way.
func Finish(ctx context.Context, start time.Time, err error) ProbeAttempt {
	d := time.Since(start)
	attempt := ProbeAttempt{
		StartedAt:  start,
		Duration:   d,
		DurationMs: d.Milliseconds(),
		Outcome:    OutcomeSuccess,
	}
	if err == nil {
		return attempt
	}

	attempt.Error = err.Error()
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		attempt.Outcome = OutcomeTimeout
		return attempt
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		attempt.Outcome = OutcomeTimeout
		return attempt
	}
	attempt.Outcome = OutcomeNetworkError
	return attempt
}

// Dispatcher routes each probe to the executor registered for its Kind.
type Dispatcher struct {
	executors map[Kind]Executor
}

// NewDispatcher returns a Dispatcher with httpExec registered for KindHTTP.
func NewDispatcher(httpExec Executor) *Dispatcher {
	return &Dispatcher{executors: map[Kind]Executor{KindHTTP: httpExec}}
}

// Register adds or replaces the executor for kind.
func (d *Dispatcher) Register(kind Kind, e Executor) *Dispatcher {
	d.executors[kind] = e
	return d
}

// Kinds returns the set of registered kinds, suitable for Validate.
func (d *Dispatcher) Kinds() map[Kind]bool {
	kinds := make(map[Kind]bool, len(d.executors))
	for k := range d.executors {
		kinds[k] = true
	}
	return kinds
}

// Execute forwards to the executor for p.Kind. An unregistered kind yields a
// network_error attempt; Validate rejects such probes before a run starts.
func (d *Dispatcher) Execute(ctx context.Context, p ServiceProbe) ProbeAttempt {
	kind := p.Kind
	if kind == "" {
		kind = KindHTTP
	}
	e, ok := d.executors[kind]
	if !ok {
		return Finish(ctx, time.Now(), fmt.Errorf("no executor for kind %q", kind))
	}
	return e.Execute(ctx, p)
}
