// Package readiness decides whether a set of services is up.
//
// Each configured ServiceProbe gets its own poller that issues attempts on a
// fixed interval until the service answers successfully or its deadline
// passes. The Orchestrator fans pollers out concurrently, bounds the whole run
// with an optional global timeout and assembles a Report once every poller
// reaches a terminal state.
//
// Per-attempt failures are data: they are recorded as ProbeAttempt outcomes
// and never returned as errors. Only an invalid probe set fails a run.
package readiness
