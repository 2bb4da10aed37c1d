package readiness

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRunInProgress is returned when Run is called while another run on the
// same Orchestrator has not finished.
var ErrRunInProgress = errors.New("readiness run already in progress")

// ConfigurationError lists every problem found in a probe set. It is returned
// before any probe is executed.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "invalid readiness configuration: " + strings.Join(e.Problems, "; ")
}

// IsConfigurationError reports whether err wraps a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// Validate checks a probe set. knownKinds limits the accepted Kind values;
// when it is nil only KindHTTP (or an empty kind) is accepted.
func Validate(probes []ServiceProbe, knownKinds map[Kind]bool) error {
	var problems []string
	if len(probes) == 0 {
		problems = append(problems, "no services configured")
	}

	seen := make(map[string]bool, len(probes))
	for i, p := range probes {
		label := fmt.Sprintf("service %q", p.Name)
		if strings.TrimSpace(p.Name) == "" {
			label = fmt.Sprintf("service #%d", i)
			problems = append(problems, label+": name is empty")
		} else if seen[p.Name] {
			problems = append(problems, label+": duplicate name")
		}
		seen[p.Name] = true

		if p.URL == "" {
			problems = append(problems, label+": url is empty")
		}
		kind := p.Kind
		if kind == "" {
			kind = KindHTTP
		}
		if knownKinds == nil {
			if kind != KindHTTP {
				problems = append(problems, fmt.Sprintf("%s: unknown kind %q", label, p.Kind))
			}
		} else if !knownKinds[kind] {
			problems = append(problems, fmt.Sprintf("%s: unknown kind %q", label, p.Kind))
		}
		if p.PerAttemptTimeout <= 0 {
			problems = append(problems, label+": per-attempt timeout must be positive")
		}
		if p.PollInterval <= 0 {
			problems = append(problems, label+": poll interval must be positive")
		}
		if p.OverallDeadline <= 0 {
			problems = append(problems, label+": deadline must be positive")
		}
	}

	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}
