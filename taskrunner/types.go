package taskrunner

import "time"

// Status represents the lifecycle state of a task. Tasks move from
// Pending through Running into exactly one terminal state: Success,
// Failed, or Skipped. A Skipped task is never also Failed.
type Status int

const (
	// Pending indicates the task is registered but has not started.
	Pending Status = iota
	// Running indicates the task handler process is executing.
	Running
	// Success indicates the handler exited with a code in its success set.
	Success
	// Failed indicates the handler exited outside its success set, timed
	// out, or could not be launched for a non-missing-handler reason.
	Failed
	// Skipped indicates the task was never launched: missing handler,
	// network unavailable, or unsatisfied prerequisite.
	Skipped
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Success:
		return "success"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Skip reasons. They are mutually exclusive: a task is skipped for
// exactly one of these.
const (
	SkipReasonMissingHandler     = "handler not found"
	SkipReasonNetworkUnavailable = "network unavailable"
	SkipReasonPrerequisite       = "prerequisite not satisfied"
)

// Result is the outcome of one task in one run. It is the single
// explicit return channel between a handler process and the
// orchestrator; nothing reads ambient "last exit code" state.
type Result struct {
	// TaskName is the registry name of the task.
	TaskName string
	// Status is the terminal state of the task.
	Status Status
	// ExitCode is the handler's exit code. Nil if the handler never ran
	// or never reported one.
	ExitCode *int
	// ErrorMessage describes a failure or the skip reason. Empty on success.
	ErrorMessage string
	// TimedOut marks a failure caused by exceeding the task timeout.
	TimedOut bool
	// Timestamp records when the task reached its terminal state.
	Timestamp time.Time
	// Duration is how long the handler process ran.
	Duration time.Duration
	// Output holds the trailing captured stdout, for diagnostics only.
	Output string
}

// SkippedResult builds a terminal Skipped result with the given reason.
func SkippedResult(taskName, reason string) Result {
	return Result{
		TaskName:     taskName,
		Status:       Skipped,
		ErrorMessage: reason,
		Timestamp:    time.Now(),
	}
}

// FailedResult builds a terminal Failed result for orchestration-level
// faults such as a handler that could not be started.
func FailedResult(taskName, message string) Result {
	return Result{
		TaskName:     taskName,
		Status:       Failed,
		ErrorMessage: message,
		Timestamp:    time.Now(),
	}
}
