package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"arc-framework/beacon/internal/readiness"
)

// natsConn is the subset of *nats.Conn used by an attempt.
type natsConn interface {
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSExecutor checks a NATS server given a URL such as nats://host:4222.
type NATSExecutor struct {
	connect func(url string, timeout time.Duration) (natsConn, error)
}

// NewNATSExecutor returns an executor that dials a fresh connection per
// attempt.
func NewNATSExecutor() *NATSExecutor {
	return &NATSExecutor{connect: realNATSConnect}
}

// Execute connects and completes one PING/PONG round trip (Flush) within
// p.PerAttemptTimeout.
func (e *NATSExecutor) Execute(ctx context.Context, p readiness.ServiceProbe) readiness.ProbeAttempt {
	ctx, cancel := context.WithTimeout(ctx, p.PerAttemptTimeout)
	defer cancel()

	start := time.Now()
	return readiness.Finish(ctx, start, e.check(ctx, p.URL, p.PerAttemptTimeout))
}

func (e *NATSExecutor) check(ctx context.Context, url string, timeout time.Duration) error {
	nc, err := e.connect(url, timeout)
	if err != nil {
		return err
	}
	defer nc.Close()

	if err := nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// realNATSConnect dials without reconnect so a refused connection surfaces
// immediately as a failed attempt.
func realNATSConnect(url string, timeout time.Duration) (natsConn, error) {
	nc, err := nats.Connect(url,
		nats.Name("arc-beacon"),
		nats.Timeout(timeout),
		nats.NoReconnect(),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return nc, nil
}
