package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"arc-framework/beacon/internal/readiness"
)

// redisPinger is the interface used by RedisExecutor. It is implemented by
// the real go-redis client and by test doubles.
type redisPinger interface {
	PingResult(ctx context.Context) (string, error)
	Close() error
}

// realRedisPinger adapts *redis.Client so tests can inject a fake without
// constructing a real *redis.StatusCmd.
type realRedisPinger struct {
	client *redis.Client
}

func (r *realRedisPinger) PingResult(ctx context.Context) (string, error) {
	return r.client.Ping(ctx).Result()
}

func (r *realRedisPinger) Close() error {
	return r.client.Close()
}

// RedisExecutor checks a Redis server given a URL such as
// redis://:password@host:6379/0.
type RedisExecutor struct {
	newPinger func(url string) (redisPinger, error)
}

// NewRedisExecutor returns an executor that opens a client per attempt.
func NewRedisExecutor() *RedisExecutor {
	return &RedisExecutor{newPinger: realNewPinger}
}

// Execute sends PING and expects PONG within p.PerAttemptTimeout.
func (e *RedisExecutor) Execute(ctx context.Context, p readiness.ServiceProbe) readiness.ProbeAttempt {
	ctx, cancel := context.WithTimeout(ctx, p.PerAttemptTimeout)
	defer cancel()

	start := time.Now()
	return readiness.Finish(ctx, start, e.check(ctx, p.URL))
}

func (e *RedisExecutor) check(ctx context.Context, url string) error {
	pinger, err := e.newPinger(url)
	if err != nil {
		return err
	}
	defer pinger.Close() //nolint:errcheck

	val, err := pinger.PingResult(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if val != "PONG" {
		return fmt.Errorf("unexpected PING response: %q", val)
	}
	return nil
}

func realNewPinger(url string) (redisPinger, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	return &realRedisPinger{client: redis.NewClient(opts)}, nil
}
