package readiness

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPExecutor_Execute(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	mux.HandleFunc("/down", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	tests := []struct {
		name        string
		path        string
		timeout     time.Duration
		predicate   SuccessPredicate
		wantOutcome Outcome
		wantStatus  int
	}{
		{name: "2xx is success", path: "/ok", timeout: time.Second, wantOutcome: OutcomeSuccess, wantStatus: 200},
		{name: "5xx is http error", path: "/down", timeout: time.Second, wantOutcome: OutcomeHTTPError, wantStatus: 503},
		{
			name:        "predicate sees body",
			path:        "/ok",
			timeout:     time.Second,
			predicate:   func(_ int, body []byte) bool { return strings.Contains(string(body), "ready") },
			wantOutcome: OutcomeHTTPError,
			wantStatus:  200,
		},
		{name: "slow response times out", path: "/slow", timeout: 50 * time.Millisecond, wantOutcome: OutcomeTimeout},
		{name: "unknown path is http error", path: "/missing", timeout: time.Second, wantOutcome: OutcomeHTTPError, wantStatus: 404},
	}

	exec := NewHTTPExecutor(srv.Client())
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p := validProbe("svc")
			p.URL = srv.URL + tc.path
			p.PerAttemptTimeout = tc.timeout
			p.Success = tc.predicate

			start := time.Now()
			a := exec.Execute(context.Background(), p)

			assert.Equal(t, tc.wantOutcome, a.Outcome)
			assert.Equal(t, tc.wantStatus, a.StatusCode)
			assert.False(t, a.StartedAt.Before(start))
			if tc.wantOutcome == OutcomeSuccess {
				assert.Empty(t, a.Error)
			} else {
				assert.NotEmpty(t, a.Error)
			}
			if tc.wantOutcome == OutcomeTimeout {
				assert.Less(t, time.Since(start), time.Second)
			}
		})
	}
}

func TestHTTPExecutor_ConnectionRefused(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := validProbe("gone")
	p.URL = url + "/health"

	a := NewHTTPExecutor(nil).Execute(context.Background(), p)
	assert.Equal(t, OutcomeNetworkError, a.Outcome)
	assert.NotEmpty(t, a.Error)
}

func TestHTTPExecutor_InjectedTransport(t *testing.T) {
	t.Parallel()

	exec := &HTTPExecutor{httpDo: func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: lookup vault: no such host")
	}}
	a := exec.Execute(context.Background(), validProbe("vault"))
	assert.Equal(t, OutcomeNetworkError, a.Outcome)
	assert.Contains(t, a.Error, "no such host")
}

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }

func TestFinish(t *testing.T) {
	t.Parallel()

	start := time.Now()
	assert.Equal(t, OutcomeSuccess, Finish(context.Background(), start, nil).Outcome)
	assert.Equal(t, OutcomeNetworkError, Finish(context.Background(), start, errors.New("reset")).Outcome)
	assert.Equal(t, OutcomeTimeout, Finish(context.Background(), start, context.DeadlineExceeded).Outcome)
	assert.Equal(t, OutcomeTimeout, Finish(context.Background(), start, timeoutErr{}).Outcome)

	expired, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-expired.Done()
	assert.Equal(t, OutcomeTimeout, Finish(expired, start, errors.New("read: connection reset")).Outcome)
}

func TestDispatcher(t *testing.T) {
	t.Parallel()

	var got []Kind
	record := func(k Kind) Executor {
		return ExecutorFunc(func(_ context.Context, _ ServiceProbe) ProbeAttempt {
			got = append(got, k)
			return ProbeAttempt{Outcome: OutcomeSuccess}
		})
	}

	d := NewDispatcher(record(KindHTTP)).Register(KindRedis, record(KindRedis))
	assert.Equal(t, map[Kind]bool{KindHTTP: true, KindRedis: true}, d.Kinds())

	p := validProbe("cache")
	d.Execute(context.Background(), p)
	p.Kind = KindRedis
	d.Execute(context.Background(), p)
	assert.Equal(t, []Kind{KindHTTP, KindRedis}, got)

	p.Kind = KindNATS
	a := d.Execute(context.Background(), p)
	require.Equal(t, OutcomeNetworkError, a.Outcome)
	assert.Contains(t, a.Error, `no executor for kind "nats"`)
}
