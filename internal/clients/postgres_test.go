package clients

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"

	"arc-framework/beacon/internal/readiness"
)

// mockRow implements pgx.Row for use in tests.
type mockRow struct {
	scanErr error
	val     int
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int); ok {
			*ptr = r.val
		}
	}
	return nil
}

// mockDB implements dbPinger for use in tests.
type mockDB struct {
	pingErr  error
	queryRow pgx.Row
	closed   bool
}

func (m *mockDB) Ping(_ context.Context) error { return m.pingErr }
func (m *mockDB) Close()                       { m.closed = true }
func (m *mockDB) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return m.queryRow
}

func pgProbe() readiness.ServiceProbe {
	return readiness.ServiceProbe{
		Name:              "postgres",
		Kind:              readiness.KindPostgres,
		URL:               "postgres://arc@localhost:5432/arc_db?sslmode=disable",
		PerAttemptTimeout: time.Second,
		PollInterval:      100 * time.Millisecond,
		OverallDeadline:   time.Second,
	}
}

func TestPostgresExecutor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		pingErr     error
		scanErr     error
		val         int
		connectErr  error
		wantOutcome readiness.Outcome
		wantErrSub  string
	}{
		{
			name:        "success: ping and select 1",
			val:         1,
			wantOutcome: readiness.OutcomeSuccess,
		},
		{
			name:        "failure: ping error",
			pingErr:     errors.New("connection refused"),
			wantOutcome: readiness.OutcomeNetworkError,
			wantErrSub:  "ping",
		},
		{
			name:        "failure: query error",
			scanErr:     errors.New("the database system is starting up"),
			wantOutcome: readiness.OutcomeNetworkError,
			wantErrSub:  "select 1",
		},
		{
			name:        "failure: unexpected value",
			val:         7,
			wantOutcome: readiness.OutcomeNetworkError,
			wantErrSub:  "returned 7",
		},
		{
			name:        "failure: connect error",
			connectErr:  errors.New("dial error"),
			wantOutcome: readiness.OutcomeNetworkError,
			wantErrSub:  "dial error",
		},
		{
			name:        "timeout: connect deadline",
			connectErr:  context.DeadlineExceeded,
			wantOutcome: readiness.OutcomeTimeout,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			db := &mockDB{pingErr: tc.pingErr, queryRow: &mockRow{scanErr: tc.scanErr, val: tc.val}}
			exec := &PostgresExecutor{
				connect: func(_ context.Context, _ string) (dbPinger, error) {
					if tc.connectErr != nil {
						return nil, tc.connectErr
					}
					return db, nil
				},
			}

			a := exec.Execute(context.Background(), pgProbe())

			assert.Equal(t, tc.wantOutcome, a.Outcome)
			if tc.wantErrSub != "" {
				assert.Contains(t, a.Error, tc.wantErrSub)
			}
			if tc.wantOutcome == readiness.OutcomeSuccess {
				assert.Empty(t, a.Error)
			}
			if tc.connectErr == nil {
				assert.True(t, db.closed, "pool must be closed after every attempt")
			}
		})
	}
}

func TestPostgresExecutor_InvalidURL(t *testing.T) {
	t.Parallel()

	p := pgProbe()
	p.URL = "postgres://%zz"
	a := NewPostgresExecutor().Execute(context.Background(), p)
	assert.Equal(t, readiness.OutcomeNetworkError, a.Outcome)
	assert.Contains(t, a.Error, "parsing postgres URL")
}
