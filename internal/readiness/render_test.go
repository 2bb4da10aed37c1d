package readiness

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func sampleReport() *Report {
	readyAt := time.Date(2026, 10, 14, 9, 0, 1, 0, time.UTC)
	return &Report{
		RunID:        "run-42",
		OverallReady: false,
		GeneratedAt:  time.Date(2026, 10, 14, 9, 0, 2, 0, time.UTC),
		Order:        []string{"vault", "flows"},
		Services: map[string]ServiceReadiness{
			"vault": {
				Name: "vault", Kind: KindHTTP, State: StateReady, AttemptCount: 2, ReadyAt: &readyAt,
				Attempts: []ProbeAttempt{
					{Outcome: OutcomeHTTPError, StatusCode: 503, Error: "unexpected response: HTTP 503"},
					{Outcome: OutcomeSuccess, StatusCode: 200, Duration: 12 * time.Millisecond},
				},
			},
			"flows": {
				Name: "flows", Kind: KindHTTP, State: StateFailed, AttemptCount: 4, Reason: ReasonServiceDeadline,
				Attempts: []ProbeAttempt{{Outcome: OutcomeNetworkError, Error: "connection refused"}},
			},
		},
	}
}

func TestWriteText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleReport()))
	out := buf.String()

	assert.Contains(t, out, "vault")
	assert.Contains(t, out, "12ms")
	assert.Contains(t, out, "flows")
	assert.Contains(t, out, "connection refused")
	assert.NotContains(t, out, "HTTP 503", "ready services do not show stale errors")
	assert.Contains(t, out, "NOT READY (1 failed)")
	assert.Contains(t, out, "run=run-42")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("vault")), bytes.Index(buf.Bytes(), []byte("flows")))
}

func TestWriteText_Ready(t *testing.T) {
	t.Parallel()

	r := sampleReport()
	r.Order = []string{"vault"}
	delete(r.Services, "flows")
	r.OverallReady = true

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, r))
	assert.Contains(t, buf.String(), "overall: READY")
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleReport()))

	var got Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "run-42", got.RunID)
	assert.False(t, got.OverallReady)
	assert.Equal(t, []string{"vault", "flows"}, got.Order)
	assert.Equal(t, StateFailed, got.Services["flows"].State)
	assert.Equal(t, 4, got.Services["flows"].AttemptCount)
}
