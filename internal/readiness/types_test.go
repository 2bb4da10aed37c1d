package readiness

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, StatePending.Terminal())
	assert.True(t, StateReady.Terminal())
	assert.True(t, StateFailed.Terminal())
}

func TestAccept2xx(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code int
		want bool
	}{
		{199, false},
		{200, true},
		{204, true},
		{299, true},
		{301, false},
		{500, false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Accept2xx(tc.code, nil), "status %d", tc.code)
	}
}

func TestServiceProbe_AcceptsUsesPredicate(t *testing.T) {
	t.Parallel()

	p := ServiceProbe{}
	assert.True(t, p.Accepts(200, nil))

	p.Success = func(code int, body []byte) bool { return code == 503 }
	assert.True(t, p.Accepts(503, nil))
	assert.False(t, p.Accepts(200, nil))
}

func TestServiceReadiness_Accessors(t *testing.T) {
	t.Parallel()

	t.Run("no attempts", func(t *testing.T) {
		t.Parallel()
		s := ServiceReadiness{State: StateFailed, Reason: ReasonGlobalDeadline}
		_, ok := s.LastAttempt()
		assert.False(t, ok)
		assert.Equal(t, ReasonGlobalDeadline, s.LastError())
		assert.Zero(t, s.ReadyLatency())
	})

	t.Run("failed then ready", func(t *testing.T) {
		t.Parallel()
		s := ServiceReadiness{
			State: StateReady,
			Attempts: []ProbeAttempt{
				{Outcome: OutcomeNetworkError, Error: "connection refused", Duration: time.Millisecond},
				{Outcome: OutcomeSuccess, Duration: 7 * time.Millisecond},
			},
		}
		last, ok := s.LastAttempt()
		require.True(t, ok)
		assert.Equal(t, OutcomeSuccess, last.Outcome)
		assert.Equal(t, "connection refused", s.LastError())
		assert.Equal(t, 7*time.Millisecond, s.ReadyLatency())
	})
}

func TestReport_FailedKeepsOrder(t *testing.T) {
	t.Parallel()

	r := &Report{
		Order: []string{"vault", "notes", "flows"},
		Services: map[string]ServiceReadiness{
			"vault": {Name: "vault", State: StateFailed},
			"notes": {Name: "notes", State: StateReady},
			"flows": {Name: "flows", State: StateFailed},
		},
	}
	assert.Equal(t, []string{"vault", "flows"}, r.Failed())
}

func TestOverallReady(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		states []State
		want   bool
	}{
		{name: "all ready", states: []State{StateReady, StateReady}, want: true},
		{name: "one failed", states: []State{StateReady, StateFailed}, want: false},
		{name: "one pending", states: []State{StatePending, StateReady}, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			services := make(map[string]ServiceReadiness)
			for i, s := range tc.states {
				name := string(rune('a' + i))
				services[name] = ServiceReadiness{Name: name, State: s}
			}
			assert.Equal(t, tc.want, overallReady(services))
		})
	}
}

func TestProbeAttempt_JSONShape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       ProbeAttempt
		errorAbsent bool
	}{
		{
			name:        "success omits error and status",
			input:       ProbeAttempt{Outcome: OutcomeSuccess, DurationMs: 3},
			errorAbsent: true,
		},
		{
			name:  "http error carries status and message",
			input: ProbeAttempt{Outcome: OutcomeHTTPError, StatusCode: 500, Error: "unexpected response: HTTP 500"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			data, err := json.Marshal(tc.input)
			require.NoError(t, err)

			var got map[string]any
			require.NoError(t, json.Unmarshal(data, &got))

			assert.Equal(t, string(tc.input.Outcome), got["outcome"])
			assert.Equal(t, float64(tc.input.DurationMs), got["durationMs"])
			_, hasError := got["error"]
			_, hasStatus := got["statusCode"]
			if tc.errorAbsent {
				assert.False(t, hasError)
				assert.False(t, hasStatus)
			} else {
				assert.Equal(t, tc.input.Error, got["error"])
				assert.Equal(t, float64(tc.input.StatusCode), got["statusCode"])
			}
		})
	}
}

func TestReport_JSONShape(t *testing.T) {
	t.Parallel()

	r := &Report{
		RunID:        "run-1",
		OverallReady: false,
		Order:        []string{"vault"},
		Services: map[string]ServiceReadiness{
			"vault": {Name: "vault", Kind: KindHTTP, State: StateFailed, AttemptCount: 2, Reason: ReasonServiceDeadline},
		},
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, "run-1", got["runId"])
	assert.Equal(t, false, got["overallReady"])
	services, ok := got["services"].(map[string]any)
	require.True(t, ok)
	vault, ok := services["vault"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "failed", vault["state"])
	assert.Equal(t, float64(2), vault["attemptCount"])
	assert.Equal(t, ReasonServiceDeadline, vault["reason"])
	_, hasReadyAt := vault["readyAt"]
	assert.False(t, hasReadyAt)
}
