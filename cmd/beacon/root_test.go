package main

import (
	"errors"
	"fmt"
	"testing"

	"arc-framework/beacon/internal/readiness"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: exitReady},
		{name: "not ready", err: &exitError{code: exitNotReady, err: errors.New("1 service(s) not ready")}, want: exitNotReady},
		{name: "config load", err: &exitError{code: exitConfigError, err: errors.New("bad yaml")}, want: exitConfigError},
		{
			name: "configuration error from run",
			err:  &readiness.ConfigurationError{Problems: []string{"duplicate service name \"a\""}},
			want: exitConfigError,
		},
		{
			name: "wrapped configuration error",
			err:  fmt.Errorf("run: %w", &readiness.ConfigurationError{Problems: []string{"x"}}),
			want: exitConfigError,
		},
		{name: "other", err: errors.New("boom"), want: exitNotReady},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, exitCode(tc.err))
		})
	}
}
