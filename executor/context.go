// Package executor runs the two phases of a deployment pipeline: the
// parallel groups and the sequential tail. It owns no policy beyond
// scheduling; classification of handler outcomes lives in taskrunner
// and persistence in statestore.
package executor

import (
	"context"
	"log/slog"

	"github.com/jmcgill52/winprep/netgate"
	"github.com/jmcgill52/winprep/registry"
	"github.com/jmcgill52/winprep/taskrunner"
)

// FlagRebootRequired marks a run during which at least one handler
// reported a pending-restart exit code.
const FlagRebootRequired = "reboot_required"

// NetworkGate blocks until the network satisfies a task's requirement.
type NetworkGate interface {
	WaitForStability(ctx context.Context, requireStable bool) bool
}

var _ NetworkGate = (*netgate.Gate)(nil)

// Launcher spawns task handler processes.
type Launcher interface {
	Run(ctx context.Context, spec taskrunner.Spec) taskrunner.Result
	Launch(ctx context.Context, spec taskrunner.Spec) (*taskrunner.Handle, error)
}

var _ Launcher = (*taskrunner.Runner)(nil)

// RunContext carries the shared collaborators and the accumulating
// per-run results across both execution phases. It is owned by the
// orchestrator's control goroutine and is not safe for concurrent use;
// parallel executors report back through return values, never by
// writing here directly.
type RunContext struct {
	Gate   NetworkGate
	Runner Launcher
	Logger *slog.Logger

	results map[string]taskrunner.Result
	flags   map[string]bool
}

// NewRunContext creates a RunContext for one deployment run.
func NewRunContext(gate NetworkGate, runner Launcher, logger *slog.Logger) *RunContext {
	return &RunContext{
		Gate:    gate,
		Runner:  runner,
		Logger:  logger,
		results: make(map[string]taskrunner.Result),
		flags:   make(map[string]bool),
	}
}

// Record stores a terminal task result.
func (rc *RunContext) Record(res taskrunner.Result) {
	rc.results[res.TaskName] = res
}

// ResultFor returns the recorded result for a task in this run.
func (rc *RunContext) ResultFor(taskName string) (taskrunner.Result, bool) {
	res, ok := rc.results[taskName]
	return res, ok
}

// SetFlag raises a named run-level flag.
func (rc *RunContext) SetFlag(name string) {
	rc.flags[name] = true
}

// Flag reports whether a run-level flag was raised.
func (rc *RunContext) Flag(name string) bool {
	return rc.flags[name]
}

// runSpec translates a registry task into a handler invocation spec.
func runSpec(t registry.Task) taskrunner.Spec {
	return taskrunner.Spec{
		TaskName:     t.Name,
		Command:      t.Handler,
		Args:         t.Args,
		Timeout:      t.Timeout,
		SuccessCodes: t.SuccessCodes,
	}
}
