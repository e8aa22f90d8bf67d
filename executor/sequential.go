package executor

import (
	"context"
	"log/slog"

	"github.com/jmcgill52/winprep/registry"
	"github.com/jmcgill52/winprep/taskrunner"
)

// SequentialExecutor runs the sequential tail of the pipeline: tasks in
// declaration order, one at a time, each gated on its own network and
// prerequisite requirements. A failure or skip never halts the tail;
// every remaining task is still attempted.
type SequentialExecutor struct {
	logger *slog.Logger

	// OnResult, when set, observes every terminal result as it is
	// produced, before the next task starts.
	OnResult func(taskrunner.Result)
}

// NewSequentialExecutor creates a sequential executor.
func NewSequentialExecutor(logger *slog.Logger) *SequentialExecutor {
	return &SequentialExecutor{
		logger: logger.With("component", "sequential"),
	}
}

// RunSequence executes the tasks in order. Each result is recorded in
// the run context so later tasks can gate on earlier outcomes.
func (e *SequentialExecutor) RunSequence(ctx context.Context, rc *RunContext, tasks []registry.Task) []taskrunner.Result {
	results := make([]taskrunner.Result, 0, len(tasks))

	for _, t := range tasks {
		res := e.runOne(ctx, rc, t)
		rc.Record(res)
		if e.OnResult != nil {
			e.OnResult(res)
		}
		results = append(results, res)
	}

	return results
}

// runOne evaluates one task's gates and, when they all pass, runs its
// handler to completion.
func (e *SequentialExecutor) runOne(ctx context.Context, rc *RunContext, t registry.Task) taskrunner.Result {
	if t.RequiresNetwork && !rc.Gate.WaitForStability(ctx, t.RequiresStableNetwork) {
		e.logger.Warn("skipping task, network requirement not met",
			"task", t.Name, "stable", t.RequiresStableNetwork)
		return taskrunner.SkippedResult(t.Name, taskrunner.SkipReasonNetworkUnavailable)
	}

	if t.Prerequisite != "" {
		prereq, ok := rc.ResultFor(t.Prerequisite)
		if !ok || prereq.Status != taskrunner.Success {
			e.logger.Warn("skipping task, prerequisite not satisfied",
				"task", t.Name, "prerequisite", t.Prerequisite)
			return taskrunner.SkippedResult(t.Name, taskrunner.SkipReasonPrerequisite)
		}
	}

	if err := taskrunner.ResolveHandler(t.Handler); err != nil {
		e.logger.Warn("skipping task, handler not found",
			"task", t.Name, "handler", t.Handler, "error", err)
		return taskrunner.SkippedResult(t.Name, taskrunner.SkipReasonMissingHandler)
	}

	return rc.Runner.Run(ctx, runSpec(t))
}
