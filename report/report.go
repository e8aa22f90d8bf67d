// Package report aggregates per-task results into run-level outcomes:
// the status counts, the process exit code, and the human-readable
// run report printed at the end of a deployment.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmcgill52/winprep/taskrunner"
)

// Summary holds the per-status counts for one run.
type Summary struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Total   int `json:"total"`
}

// Summarize counts the terminal statuses of a run. Anything that is
// neither Success nor Skipped counts as Failed, so a result stuck in a
// non-terminal state is surfaced rather than silently dropped.
func Summarize(results []taskrunner.Result) Summary {
	var s Summary
	for _, res := range results {
		switch res.Status {
		case taskrunner.Success:
			s.Success++
		case taskrunner.Skipped:
			s.Skipped++
		default:
			s.Failed++
		}
	}
	s.Total = s.Success + s.Failed + s.Skipped
	return s
}

// ExitCode maps a summary onto the process exit code: zero only when no
// task failed. Skips alone do not fail the run.
func (s Summary) ExitCode() int {
	if s.Failed > 0 {
		return 1
	}
	return 0
}

// String renders the one-line run summary.
func (s Summary) String() string {
	return fmt.Sprintf("%d succeeded, %d failed, %d skipped (%d total)",
		s.Success, s.Failed, s.Skipped, s.Total)
}

// Render produces the final run report: one line per task in execution
// order, the summary line, and a restart note when a handler signalled
// a pending reboot.
func Render(results []taskrunner.Result, rebootRequired bool) string {
	var b strings.Builder

	b.WriteString("Deployment results:\n")
	for _, res := range results {
		b.WriteString("  ")
		b.WriteString(renderLine(res))
		b.WriteByte('\n')
	}

	b.WriteString(Summarize(results).String())
	b.WriteByte('\n')

	if rebootRequired {
		b.WriteString("A restart is required to complete one or more tasks.\n")
	}

	return b.String()
}

// renderLine formats one task's outcome.
func renderLine(res taskrunner.Result) string {
	switch res.Status {
	case taskrunner.Success:
		if res.Duration > 0 {
			return fmt.Sprintf("%-10s %s (%s)", "OK", res.TaskName, res.Duration.Round(time.Millisecond))
		}
		return fmt.Sprintf("%-10s %s", "OK", res.TaskName)
	case taskrunner.Skipped:
		return fmt.Sprintf("%-10s %s: %s", "SKIPPED", res.TaskName, res.ErrorMessage)
	default:
		line := fmt.Sprintf("%-10s %s", "FAILED", res.TaskName)
		if res.ExitCode != nil {
			line += fmt.Sprintf(" (exit code %d)", *res.ExitCode)
		}
		if res.ErrorMessage != "" {
			line += ": " + res.ErrorMessage
		}
		return line
	}
}
