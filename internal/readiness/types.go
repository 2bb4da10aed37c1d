package readiness

import (
	"net/http"
	"time"
)

// Kind selects the executor used for a probe.
type Kind string

// Probe kinds understood by the default dispatcher wiring.
const (
	KindHTTP     Kind = "http"
	KindPostgres Kind = "postgres"
	KindRedis    Kind = "redis"
	KindNATS     Kind = "nats"
)

// State is the readiness state of a single service.
type State string

const (
	StatePending State = "pending"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// Terminal reports whether no further transitions are possible from s.
func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed
}

// Outcome classifies a single probe attempt.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeHTTPError    Outcome = "http_error"
	OutcomeNetworkError Outcome = "network_error"
	OutcomeTimeout      Outcome = "timeout"
)

// Failure reasons recorded on a failed ServiceReadiness.
const (
	ReasonServiceDeadline = "service deadline exceeded"
	ReasonGlobalDeadline  = "global deadline exceeded"
)

// SuccessPredicate classifies a response. A nil predicate accepts any 2xx.
type SuccessPredicate func(statusCode int, body []byte) bool

// Accept2xx is the default SuccessPredicate.
func Accept2xx(statusCode int, _ []byte) bool {
	return statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices
}

// ServiceProbe is a single configured health check target. It is treated as
// immutable for the duration of a run.
type ServiceProbe struct {
	Name              string
	Kind              Kind
	URL               string
	PerAttemptTimeout time.Duration
	PollInterval      time.Duration
	OverallDeadline   time.Duration
	Success           SuccessPredicate
}

// Accepts applies the probe's predicate, falling back to Accept2xx.
func (p ServiceProbe) Accepts(statusCode int, body []byte) bool {
	if p.Success == nil {
		return Accept2xx(statusCode, body)
	}
	return p.Success(statusCode, body)
}

// ProbeAttempt is the result of one request/response cycle.
type ProbeAttempt struct {
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"-"`
	DurationMs int64         `json:"durationMs"`
	Outcome    Outcome       `json:"outcome"`
	StatusCode int           `json:"statusCode,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// ServiceReadiness is the per-service result of a run. Attempts holds the most
// recent attempts only; AttemptCount is the total issued.
type ServiceReadiness struct {
	Name         string         `json:"name"`
	Kind         Kind           `json:"kind"`
	URL          string         `json:"url"`
	State        State          `json:"state"`
	AttemptCount int            `json:"attemptCount"`
	Attempts     []ProbeAttempt `json:"attempts"`
	StartedAt    time.Time      `json:"startedAt"`
	ReadyAt      *time.Time     `json:"readyAt,omitempty"`
	Reason       string         `json:"reason,omitempty"`
}

// LastAttempt returns the most recent attempt, if any.
func (s ServiceReadiness) LastAttempt() (ProbeAttempt, bool) {
	if len(s.Attempts) == 0 {
		return ProbeAttempt{}, false
	}
	return s.Attempts[len(s.Attempts)-1], true
}

// LastError returns the error of the most recent unsuccessful attempt, or the
// failure reason when no attempt carried one.
func (s ServiceReadiness) LastError() string {
	for i := len(s.Attempts) - 1; i >= 0; i-- {
		if s.Attempts[i].Outcome != OutcomeSuccess && s.Attempts[i].Error != "" {
			return s.Attempts[i].Error
		}
	}
	return s.Reason
}

// ReadyLatency is the duration of the first successful attempt. It is zero
// unless the service is ready.
func (s ServiceReadiness) ReadyLatency() time.Duration {
	if s.State != StateReady {
		return 0
	}
	for _, a := range s.Attempts {
		if a.Outcome == OutcomeSuccess {
			return a.Duration
		}
	}
	return 0
}

// Report is the aggregated snapshot of a run. It is not modified after Run
// returns it.
type Report struct {
	RunID        string                      `json:"runId"`
	OverallReady bool                        `json:"overallReady"`
	GeneratedAt  time.Time                   `json:"generatedAt"`
	Order        []string                    `json:"order"`
	Services     map[string]ServiceReadiness `json:"services"`
}

// Failed returns the names of services that did not become ready, in
// configuration order.
func (r *Report) Failed() []string {
	var names []string
	for _, name := range r.Order {
		if r.Services[name].State != StateReady {
			names = append(names, name)
		}
	}
	return names
}

// overallReady is true iff every service reached StateReady.
func overallReady(services map[string]ServiceReadiness) bool {
	for _, s := range services {
		if s.State != StateReady {
			return false
		}
	}
	return true
}
