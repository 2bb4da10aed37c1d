package readiness

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// WriteJSON emits the report as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// WriteText emits an operator-facing table followed by an overall verdict.
// Services appear in configuration order.
func WriteText(w io.Writer, r *Report) error {
	table := tablewriter.NewWriter(w)
	table.Header("Service", "Kind", "State", "Attempts", "Latency", "Last Error")

	for _, name := range r.Order {
		s := r.Services[name]
		latency := "-"
		if s.State == StateReady {
			latency = s.ReadyLatency().Round(time.Millisecond).String()
		}
		lastErr := ""
		if s.State != StateReady {
			lastErr = s.LastError()
		}
		if err := table.Append([]string{
			s.Name,
			string(s.Kind),
			stateLabel(s.State),
			strconv.Itoa(s.AttemptCount),
			latency,
			lastErr,
		}); err != nil {
			return fmt.Errorf("rendering row %s: %w", name, err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("rendering table: %w", err)
	}

	verdict := color.New(color.FgGreen, color.Bold).Sprint("READY")
	if !r.OverallReady {
		verdict = color.New(color.FgRed, color.Bold).Sprintf("NOT READY (%d failed)", len(r.Failed()))
	}
	_, err := fmt.Fprintf(w, "overall: %s  run=%s  at=%s\n",
		verdict, r.RunID, r.GeneratedAt.Format(time.RFC3339))
	return err
}

func stateLabel(s State) string {
	switch s {
	case StateReady:
		return color.GreenString(string(s))
	case StateFailed:
		return color.RedString(string(s))
	default:
		return color.YellowString(string(s))
	}
}
