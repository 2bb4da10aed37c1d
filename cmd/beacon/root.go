package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"arc-framework/beacon/internal/config"
	"arc-framework/beacon/internal/readiness"
	"arc-framework/beacon/internal/telemetry"

	"github.com/spf13/cobra"
)

// Process exit codes.
const (
	exitReady       = 0
	exitNotReady    = 1
	exitConfigError = 2
)

var (
	cfgFile  string
	envFile  string
	logLevel string

	// cfg is populated by PersistentPreRunE and shared with all subcommands.
	cfg *config.Config

	// app holds all wired dependencies; populated by PersistentPreRunE.
	app *AppContext
)

var rootCmd = &cobra.Command{
	Use:   "beacon",
	Short: "A.R.C. Beacon: readiness orchestrator for the local stack",
	Long: `Beacon waits for a set of services to become ready.
Each service is polled on its own schedule until it answers successfully or
its deadline passes; one slow or broken service never holds up the others.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with credentials referenced by service URLs")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		out := logOutput(cmd)
		slog.SetDefault(telemetry.NewLogger(out, logLevel))

		// The default .env is optional; an explicit one must exist.
		if err := config.LoadEnvFile(envFile, !cmd.Flags().Changed("env-file")); err != nil {
			return &exitError{code: exitConfigError, err: err}
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return &exitError{code: exitConfigError, err: fmt.Errorf("loading config: %w", err)}
		}

		// --log-level flag takes precedence over value in config file.
		if cmd.Flags().Changed("log-level") {
			cfg.Telemetry.LogLevel = logLevel
		} else if cfg.Telemetry.LogLevel != "" {
			slog.SetDefault(telemetry.NewLogger(out, cfg.Telemetry.LogLevel))
		}

		app, err = buildAppContext(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("building app context: %w", err)
		}
		return nil
	}

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(checkCmd)
}

// Execute is the entry point called by main.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line in args and returns the process exit code.
// Reports go to stdout, logs and errors to stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
	}
	return exitCode(err)
}

// exitError carries a specific process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitReady
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if readiness.IsConfigurationError(err) {
		return exitConfigError
	}
	return exitNotReady
}

// logOutput keeps stdout free for the report in one-shot mode.
func logOutput(cmd *cobra.Command) io.Writer {
	if cmd.Name() == checkCmd.Name() {
		return cmd.ErrOrStderr()
	}
	return cmd.OutOrStdout()
}
