// Package taskrunner executes provisioning task handlers as isolated
// child processes. A handler is opaque: it is invoked with no standard
// input, its stdout/stderr are captured into per-invocation sinks, and
// its sole success signal is the process exit code, classified against
// a per-task success-code set.
package taskrunner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// outputTailBytes bounds how much captured output is kept per stream.
const outputTailBytes = 4096

// Spec describes one handler invocation.
type Spec struct {
	// TaskName is used for sink naming and result attribution.
	TaskName string
	// Command is the handler executable or script.
	Command string
	// Args are passed to the handler verbatim.
	Args []string
	// Timeout forcibly terminates the handler when exceeded. Zero means
	// no timeout.
	Timeout time.Duration
	// SuccessCodes is the set of exit codes classified as Success.
	// Empty means {0}.
	SuccessCodes []int
}

// Runner spawns task handler processes.
type Runner struct {
	logger  *slog.Logger
	tempDir string // "" means the OS default temp dir
}

// Option configures a Runner.
type Option func(*Runner)

// WithTempDir places per-invocation output sinks under dir.
func WithTempDir(dir string) Option {
	return func(r *Runner) {
		r.tempDir = dir
	}
}

// New creates a Runner.
func New(logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		logger: logger.With("component", "taskrunner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run launches the handler and blocks until it finishes. Handler
// failures of any kind are folded into the Result; Run never panics or
// errors for them.
func (r *Runner) Run(ctx context.Context, spec Spec) Result {
	handle, err := r.Launch(ctx, spec)
	if err != nil {
		return FailedResult(spec.TaskName, err.Error())
	}
	return handle.Wait()
}

// Launch starts the handler without waiting. The returned Handle must
// be waited on exactly once. An error here is an orchestration-level
// fault (the process could not be started at all), not a handler failure.
func (r *Runner) Launch(ctx context.Context, spec Spec) (*Handle, error) {
	stdout, err := r.newSink(spec.TaskName, "out")
	if err != nil {
		return nil, fmt.Errorf("creating stdout sink: %w", err)
	}
	stderr, err := r.newSink(spec.TaskName, "err")
	if err != nil {
		discardSink(stdout)
		return nil, fmt.Errorf("creating stderr sink: %w", err)
	}

	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
	}

	cmd := exec.CommandContext(runCtx, spec.Command, spec.Args...)
	cmd.Stdin = nil
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	configureProcess(cmd)
	cmd.Cancel = func() error {
		terminateProcess(cmd)
		return nil
	}

	r.logger.Info("launching task handler",
		"task", spec.TaskName,
		"handler", spec.Command,
		"timeout", spec.Timeout,
	)

	if err := cmd.Start(); err != nil {
		cancel()
		discardSink(stdout)
		discardSink(stderr)
		return nil, fmt.Errorf("starting handler %q: %w", spec.Command, err)
	}

	return &Handle{
		spec:    spec,
		logger:  r.logger,
		cmd:     cmd,
		runCtx:  runCtx,
		cancel:  cancel,
		stdout:  stdout,
		stderr:  stderr,
		started: time.Now(),
	}, nil
}

// newSink creates a per-invocation output file. The random suffix from
// CreateTemp keeps concurrent invocations from ever sharing a sink.
func (r *Runner) newSink(taskName, kind string) (*os.File, error) {
	pattern := fmt.Sprintf("winprep-%s-*.%s", sanitizeName(taskName), kind)
	return os.CreateTemp(r.tempDir, pattern)
}

// Handle tracks one launched handler process.
type Handle struct {
	spec    Spec
	logger  *slog.Logger
	cmd     *exec.Cmd
	runCtx  context.Context
	cancel  context.CancelFunc
	stdout  *os.File
	stderr  *os.File
	started time.Time
}

// TaskName returns the name of the task this handle is running.
func (h *Handle) TaskName() string {
	return h.spec.TaskName
}

// Wait blocks until the handler finishes and classifies the outcome.
func (h *Handle) Wait() Result {
	waitErr := h.cmd.Wait()
	duration := time.Since(h.started)
	timedOut := h.runCtx.Err() == context.DeadlineExceeded
	h.cancel()

	stdoutTail := drainSink(h.stdout)
	stderrTail := drainSink(h.stderr)

	res := Result{
		TaskName:  h.spec.TaskName,
		Timestamp: time.Now(),
		Duration:  duration,
		Output:    stdoutTail,
	}

	if timedOut {
		res.Status = Failed
		res.TimedOut = true
		res.ErrorMessage = fmt.Sprintf("timed out after %s", h.spec.Timeout)
		if frag := errorFragments(stderrTail); frag != "" {
			res.ErrorMessage += ": " + frag
		}
		h.logger.Warn("task handler timed out",
			"task", h.spec.TaskName, "timeout", h.spec.Timeout)
		return res
	}

	code := h.cmd.ProcessState.ExitCode()
	if code < 0 {
		// Terminated by signal or killed; there is no exit code to classify.
		res.Status = Failed
		res.ErrorMessage = fmt.Sprintf("handler did not report an exit code: %v", waitErr)
		return res
	}

	res.ExitCode = &code
	if codeAllowed(code, h.spec.SuccessCodes) {
		res.Status = Success
		h.logger.Info("task handler completed",
			"task", h.spec.TaskName, "exit_code", code, "duration", duration)
		return res
	}

	res.Status = Failed
	res.ErrorMessage = DescribeExitCode(code)
	if frag := errorFragments(stderrTail); frag != "" {
		res.ErrorMessage += ": " + frag
	}
	h.logger.Warn("task handler failed",
		"task", h.spec.TaskName, "exit_code", code, "duration", duration)
	return res
}

// ResolveHandler checks that a handler can be located before launch.
// Explicit paths are stat'ed; bare names are resolved via PATH.
func ResolveHandler(handler string) error {
	if strings.ContainsAny(handler, `/\`) {
		info, err := os.Stat(handler)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fmt.Errorf("handler %q is a directory", handler)
		}
		return nil
	}
	_, err := exec.LookPath(handler)
	return err
}

// errorFragments extracts up to three error-indicating lines from
// captured stderr for inclusion in failure messages.
func errorFragments(stderr string) string {
	const maxFragments = 3

	var fragments []string
	for _, line := range strings.Split(stderr, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		if strings.Contains(lower, "error") ||
			strings.Contains(lower, "fail") ||
			strings.Contains(lower, "fatal") ||
			strings.Contains(lower, "denied") {
			fragments = append(fragments, trimmed)
			if len(fragments) == maxFragments {
				break
			}
		}
	}
	return strings.Join(fragments, " | ")
}

// drainSink reads the trailing output from a sink file, then closes and
// removes it.
func drainSink(f *os.File) string {
	if f == nil {
		return ""
	}
	defer discardSink(f)

	info, err := f.Stat()
	if err != nil {
		return ""
	}

	offset := int64(0)
	if info.Size() > outputTailBytes {
		offset = info.Size() - outputTailBytes
	}

	buf := make([]byte, info.Size()-offset)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return ""
	}
	return strings.TrimSpace(string(buf))
}

// discardSink closes and removes a sink file.
func discardSink(f *os.File) {
	if f == nil {
		return
	}
	f.Close()
	os.Remove(f.Name())
}

// sanitizeName makes a task name safe for use in a CreateTemp pattern.
// This mapping may collide between names; the random suffix CreateTemp
// appends keeps the sinks distinct. State-record file names need a
// collision-free encoding instead (see statestore).
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, name)
}
