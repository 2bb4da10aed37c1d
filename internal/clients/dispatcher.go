package clients

import (
	"net/http"

	"arc-framework/beacon/internal/readiness"
)

// NewDispatcher returns a dispatcher with every supported probe kind
// registered: HTTP via client, plus Postgres, Redis and NATS.
func NewDispatcher(client *http.Client) *readiness.Dispatcher {
	return readiness.NewDispatcher(readiness.NewHTTPExecutor(client)).
		Register(readiness.KindPostgres, NewPostgresExecutor()).
		Register(readiness.KindRedis, NewRedisExecutor()).
		Register(readiness.KindNATS, NewNATSExecutor())
}
