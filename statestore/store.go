// Package statestore persists the last-known outcome of every task so
// the deployment state of a machine can be inspected after the run, and
// after reboots, without the orchestrator running. The store is a
// durable key-value map: one record per task name, overwritten on the
// next run.
package statestore

import (
	"time"

	"github.com/jmcgill52/winprep/taskrunner"
)

// Record is the persisted per-task schema. The field set is part of the
// external contract: "show last deployment status" tooling enumerates
// these records directly from disk.
type Record struct {
	// TaskName mirrors the store key so a record is self-describing.
	TaskName string `json:"task"`
	// Status is the terminal status string (success, failed, skipped).
	Status string `json:"status"`
	// Timestamp is when the task reached its terminal state, RFC3339.
	Timestamp string `json:"timestamp"`
	// ExitCode is the handler exit code, when one was reported.
	ExitCode *int `json:"exit_code,omitempty"`
	// ErrorMessage holds the failure description or skip reason.
	ErrorMessage string `json:"error_message,omitempty"`
	// DurationSeconds is how long the handler ran.
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	// Version identifies the orchestrator build that wrote the record.
	Version string `json:"version,omitempty"`
}

// FromResult converts a task result into its persisted form.
func FromResult(res taskrunner.Result, version string) Record {
	ts := res.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return Record{
		TaskName:        res.TaskName,
		Status:          res.Status.String(),
		Timestamp:       ts.Format(time.RFC3339),
		ExitCode:        res.ExitCode,
		ErrorMessage:    res.ErrorMessage,
		DurationSeconds: res.Duration.Seconds(),
		Version:         version,
	}
}

// Store is the durable key-value record of per-task outcomes.
// All writes originate from the orchestrator's single control
// goroutine, so implementations need no write coordination beyond
// basic thread safety.
type Store interface {
	// Put overwrites the record for taskName.
	Put(taskName string, rec Record) error
	// Get returns the record for taskName, and whether one exists.
	Get(taskName string) (Record, bool, error)
	// All returns every stored record keyed by task name. Partially
	// written or foreign entries are tolerated and skipped rather than
	// failing the enumeration.
	All() (map[string]Record, error)
}
