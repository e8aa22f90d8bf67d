package executor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jmcgill52/winprep/registry"
	"github.com/jmcgill52/winprep/taskrunner"
)

// ParallelGroupExecutor runs the members of one parallel group
// concurrently and joins them all before returning. One task failing or
// being skipped never prevents its group peers from starting.
type ParallelGroupExecutor struct {
	logger *slog.Logger
}

// NewParallelGroupExecutor creates a group executor.
func NewParallelGroupExecutor(logger *slog.Logger) *ParallelGroupExecutor {
	return &ParallelGroupExecutor{
		logger: logger.With("component", "parallel"),
	}
}

// RunGroup launches every runnable member of the group, waits for all
// of them, and returns one terminal result per member in member order.
// Members whose handler cannot be resolved are skipped without
// launching anything; members that fail to launch are marked failed.
// Network gating is the caller's concern and happens once per group,
// before this call.
func (e *ParallelGroupExecutor) RunGroup(ctx context.Context, rc *RunContext, tasks []registry.Task) []taskrunner.Result {
	results := make([]taskrunner.Result, len(tasks))

	var wg sync.WaitGroup
	for i, t := range tasks {
		if err := taskrunner.ResolveHandler(t.Handler); err != nil {
			e.logger.Warn("skipping task, handler not found",
				"task", t.Name, "handler", t.Handler, "error", err)
			results[i] = taskrunner.SkippedResult(t.Name, taskrunner.SkipReasonMissingHandler)
			continue
		}

		handle, err := rc.Runner.Launch(ctx, runSpec(t))
		if err != nil {
			e.logger.Error("failed to launch task handler",
				"task", t.Name, "error", err)
			results[i] = taskrunner.FailedResult(t.Name, err.Error())
			continue
		}

		wg.Add(1)
		go func(i int, handle *taskrunner.Handle) {
			defer wg.Done()
			results[i] = handle.Wait()
		}(i, handle)
	}
	wg.Wait()

	return results
}
