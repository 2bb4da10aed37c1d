package api

import (
	"sync/atomic"

	"arc-framework/beacon/internal/readiness"
)

// ProbeSet is a ProbeSource whose contents can be swapped while the server
// runs, e.g. after a config file reload. Runs already started keep the slice
// they were given.
type ProbeSet struct {
	current atomic.Pointer[[]readiness.ServiceProbe]
}

// NewProbeSet returns a ProbeSet holding probes.
func NewProbeSet(probes []readiness.ServiceProbe) *ProbeSet {
	s := &ProbeSet{}
	s.Store(probes)
	return s
}

// Store replaces the probe set.
func (s *ProbeSet) Store(probes []readiness.ServiceProbe) {
	cp := append([]readiness.ServiceProbe(nil), probes...)
	s.current.Store(&cp)
}

// Probes returns the current probe set.
func (s *ProbeSet) Probes() []readiness.ServiceProbe {
	if p := s.current.Load(); p != nil {
		return *p
	}
	return nil
}
