// Package main is the entry point for arc-beacon, the readiness orchestrator.
//
// Beacon polls every configured service concurrently until each one reports
// ready or exhausts its deadline, then prints or serves the combined report.
package main

func main() {
	Execute()
}
