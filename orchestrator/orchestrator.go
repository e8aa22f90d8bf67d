// Package orchestrator drives one deployment run end to end: parallel
// groups first, then the sequential tail, with every terminal result
// persisted and observed as it lands. All scheduling decisions and all
// state-store writes happen on the caller's goroutine.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmcgill52/winprep/buildinfo"
	"github.com/jmcgill52/winprep/config"
	"github.com/jmcgill52/winprep/executor"
	"github.com/jmcgill52/winprep/metrics"
	"github.com/jmcgill52/winprep/netgate"
	"github.com/jmcgill52/winprep/registry"
	"github.com/jmcgill52/winprep/report"
	"github.com/jmcgill52/winprep/statestore"
	"github.com/jmcgill52/winprep/taskrunner"
)

// RunOutcome is the aggregate of one deployment run.
type RunOutcome struct {
	// Summary holds the per-status counts.
	Summary report.Summary
	// Results holds every terminal result in execution order.
	Results []taskrunner.Result
	// RebootRequired is set when any handler exited with a
	// pending-restart code.
	RebootRequired bool
}

// Orchestrator owns the collaborators of a deployment run. It is built
// once and can run any number of times; the state store keeps only the
// latest outcome per task.
type Orchestrator struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *registry.Registry
	store    statestore.Store
	gate     executor.NetworkGate
	runner   executor.Launcher
	deploy   *metrics.Deployment
	version  string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStateStore overrides the default disk-backed store.
func WithStateStore(store statestore.Store) Option {
	return func(o *Orchestrator) {
		o.store = store
	}
}

// WithProber overrides the connectivity probe behind the network gate.
func WithProber(prober netgate.Prober) Option {
	return func(o *Orchestrator) {
		o.gate = netgate.NewGate(prober, o.retryPolicy(), o.logger,
			netgate.WithStabilityWindow(o.cfg.Network.StabilityProbes, o.cfg.Network.StabilityInterval))
	}
}

// WithGate replaces the network gate entirely.
func WithGate(gate executor.NetworkGate) Option {
	return func(o *Orchestrator) {
		o.gate = gate
	}
}

// WithRunner overrides the task runner.
func WithRunner(runner executor.Launcher) Option {
	return func(o *Orchestrator) {
		o.runner = runner
	}
}

// WithMetrics attaches a deployment metric set.
func WithMetrics(deploy *metrics.Deployment) Option {
	return func(o *Orchestrator) {
		o.deploy = deploy
	}
}

// New builds an Orchestrator from configuration. Registry validation
// and state-store setup failures are fatal: no task may run until both
// are sound.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*Orchestrator, error) {
	// Tasks without their own timeout inherit the configured default.
	for i := range cfg.Tasks {
		if cfg.Tasks[i].Timeout == 0 {
			cfg.Tasks[i].Timeout = cfg.Behavior.TaskTimeout
		}
	}

	reg, err := registry.New(cfg.Tasks)
	if err != nil {
		return nil, fmt.Errorf("invalid task registry: %w", err)
	}

	o := &Orchestrator{
		cfg:      cfg,
		logger:   logger.With("component", "orchestrator"),
		registry: reg,
		version:  buildinfo.Get().Version,
	}

	probe := netgate.NewHTTPProbe(cfg.Network.ProbeURL,
		netgate.WithProbeTimeout(cfg.Network.ProbeTimeout))
	o.gate = netgate.NewGate(probe, o.retryPolicy(), logger,
		netgate.WithStabilityWindow(cfg.Network.StabilityProbes, cfg.Network.StabilityInterval))

	var runnerOpts []taskrunner.Option
	if cfg.Behavior.TempDir != "" {
		runnerOpts = append(runnerOpts, taskrunner.WithTempDir(cfg.Behavior.TempDir))
	}
	o.runner = taskrunner.New(logger, runnerOpts...)

	for _, opt := range opts {
		opt(o)
	}

	if o.store == nil {
		store, err := statestore.NewDiskStore(cfg.State.Dir, logger)
		if err != nil {
			return nil, fmt.Errorf("opening state store: %w", err)
		}
		o.store = store
	}

	if o.deploy == nil {
		deploy, err := metrics.NewDeployment(metrics.NewNoopRegistry())
		if err != nil {
			return nil, fmt.Errorf("initializing metrics: %w", err)
		}
		o.deploy = deploy
	}

	return o, nil
}

func (o *Orchestrator) retryPolicy() netgate.RetryPolicy {
	return netgate.RetryPolicy{
		MaxAttempts: o.cfg.Network.MaxRetries,
		Delay:       o.cfg.Network.RetryDelay,
	}
}

// Registry exposes the validated task registry.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.registry
}

// Run executes every registered task once. Individual task failures
// never abort the run; the returned error covers orchestration faults
// only. The summary decides the process exit code.
func (o *Orchestrator) Run(ctx context.Context) (RunOutcome, error) {
	started := time.Now()
	o.deploy.RunStarted()
	o.logger.Info("starting deployment run",
		"tasks", o.registry.Len(), "version", o.version)

	rc := executor.NewRunContext(o.gate, o.runner, o.logger)
	var results []taskrunner.Result

	parallel := executor.NewParallelGroupExecutor(o.logger)
	for _, group := range o.registry.ParallelGroups() {
		groupResults := o.runGroup(ctx, rc, parallel, group)
		for _, res := range groupResults {
			rc.Record(res)
			o.observe(rc, res)
			results = append(results, res)
		}
	}

	sequential := executor.NewSequentialExecutor(o.logger)
	sequential.OnResult = func(res taskrunner.Result) {
		o.observe(rc, res)
	}
	results = append(results, sequential.RunSequence(ctx, rc, o.registry.Sequential())...)

	outcome := RunOutcome{
		Summary:        report.Summarize(results),
		Results:        results,
		RebootRequired: rc.Flag(executor.FlagRebootRequired),
	}

	elapsed := time.Since(started)
	o.deploy.ObserveRun(elapsed.Seconds())
	o.logger.Info("deployment run finished",
		"duration", elapsed,
		"success", outcome.Summary.Success,
		"failed", outcome.Summary.Failed,
		"skipped", outcome.Summary.Skipped,
		"reboot_required", outcome.RebootRequired,
	)

	return outcome, nil
}

// runGroup gates a parallel group once and executes it. If the gate
// stays closed, only the members that require the network are skipped;
// offline members still run.
func (o *Orchestrator) runGroup(ctx context.Context, rc *executor.RunContext, parallel *executor.ParallelGroupExecutor, group []registry.Task) []taskrunner.Result {
	needsNetwork := false
	needsStable := false
	for _, t := range group {
		if t.RequiresNetwork {
			needsNetwork = true
		}
		if t.RequiresStableNetwork {
			needsStable = true
		}
	}

	if !needsNetwork || rc.Gate.WaitForStability(ctx, needsStable) {
		return parallel.RunGroup(ctx, rc, group)
	}

	o.logger.Warn("network requirement not met for group",
		"group", group[0].Group, "stable", needsStable)

	runnable := make([]registry.Task, 0, len(group))
	skipped := make(map[string]bool, len(group))
	for _, t := range group {
		if t.RequiresNetwork {
			skipped[t.Name] = true
		} else {
			runnable = append(runnable, t)
		}
	}

	executed := parallel.RunGroup(ctx, rc, runnable)

	// Preserve member order in the combined result list.
	byName := make(map[string]taskrunner.Result, len(executed))
	for _, res := range executed {
		byName[res.TaskName] = res
	}

	results := make([]taskrunner.Result, 0, len(group))
	for _, t := range group {
		if skipped[t.Name] {
			results = append(results, taskrunner.SkippedResult(t.Name, taskrunner.SkipReasonNetworkUnavailable))
			continue
		}
		results = append(results, byName[t.Name])
	}
	return results
}

// observe handles one terminal result: reboot tracking, severity-aware
// logging, persistence, and metrics.
func (o *Orchestrator) observe(rc *executor.RunContext, res taskrunner.Result) {
	if res.ExitCode != nil && taskrunner.RebootRequired(*res.ExitCode) {
		rc.SetFlag(executor.FlagRebootRequired)
		o.logger.Info("task requests a restart", "task", res.TaskName, "exit_code", *res.ExitCode)
	}

	if res.Status == taskrunner.Failed {
		task, _ := o.registry.Task(res.TaskName)
		if task.Critical {
			o.logger.Error("critical task failed",
				"task", res.TaskName, "error", res.ErrorMessage)
		} else {
			o.logger.Warn("task failed",
				"task", res.TaskName, "error", res.ErrorMessage)
		}
	}

	if err := o.store.Put(res.TaskName, statestore.FromResult(res, o.version)); err != nil {
		o.logger.Error("failed to persist task record",
			"task", res.TaskName, "error", err)
	}

	o.deploy.ObserveTask(res.TaskName, res.Status.String(), res.Duration.Seconds())
}
