package main

import (
	"fmt"
	"log/slog"
	"time"

	"arc-framework/beacon/internal/readiness"

	"github.com/spf13/cobra"
)

var (
	checkOutput  string
	checkTimeout time.Duration
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one readiness pass and exit",
	Long: `Check polls every configured service until each one is ready or has
exhausted its deadline, prints the report to stdout and exits.

Exit codes: 0 when every service is ready, 1 when at least one service
failed, 2 when the configuration is invalid.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkOutput, "output", "o", "text", "report format (text, json)")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 0, "global timeout for the run (overrides readiness.global_timeout)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	defer app.shutdown()

	write := readiness.WriteText
	switch checkOutput {
	case "text":
	case "json":
		write = readiness.WriteJSON
	default:
		return &exitError{code: exitConfigError, err: fmt.Errorf("unknown output format %q", checkOutput)}
	}

	o := app.orchestrator
	if cmd.Flags().Changed("timeout") {
		o = app.newOrchestrator(checkTimeout)
	}

	report, err := o.Run(cmd.Context(), app.probes.Probes())
	if err != nil {
		return err
	}

	if err := write(cmd.OutOrStdout(), report); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if !report.OverallReady {
		return &exitError{
			code: exitNotReady,
			err:  fmt.Errorf("%d service(s) not ready: %v", len(report.Failed()), report.Failed()),
		}
	}
	slog.Debug("all services ready", "run_id", report.RunID)
	return nil
}
