package clients

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"arc-framework/beacon/internal/readiness"
)

// ErrCircuitOpen is the error text recorded for attempts rejected by an open
// breaker.
const ErrCircuitOpen = "circuit open"

// NewCircuitBreaker returns a gobreaker configured to trip after 3 consecutive
// failures and reset after 30 seconds in the open state.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
}

// BreakerExecutor wraps an executor with one circuit breaker per service so a
// dependency that keeps failing is not hammered by repeated health checks.
// It is meant for on-demand checks; the readiness poll loop talks to the
// wrapped executor directly so attempt counts stay exact.
type BreakerExecutor struct {
	next readiness.Executor

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerExecutor wraps next.
func NewBreakerExecutor(next readiness.Executor) *BreakerExecutor {
	return &BreakerExecutor{
		next:     next,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Execute runs one attempt through the service's breaker. An open breaker
// short-circuits to a network_error attempt without touching the service.
func (b *BreakerExecutor) Execute(ctx context.Context, p readiness.ServiceProbe) readiness.ProbeAttempt {
	start := time.Now()
	var attempt readiness.ProbeAttempt

	_, err := b.breakerFor(p.Name).Execute(func() (any, error) {
		attempt = b.next.Execute(ctx, p)
		if attempt.Outcome != readiness.OutcomeSuccess {
			return nil, errors.New(attempt.Error)
		}
		return nil, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		a := readiness.Finish(ctx, start, errors.New(ErrCircuitOpen))
		a.Outcome = readiness.OutcomeNetworkError
		return a
	}
	return attempt
}

// State returns the breaker state for a service, or StateClosed if none has
// been created yet.
func (b *BreakerExecutor) State(name string) gobreaker.State {
	b.mu.Lock()
	cb, ok := b.breakers[name]
	b.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}

func (b *BreakerExecutor) breakerFor(name string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	cb, ok := b.breakers[name]
	if !ok {
		cb = NewCircuitBreaker(name)
		b.breakers[name] = cb
	}
	return cb
}
