// Package registry holds the static task registry: the ordered list of
// provisioning tasks a deployment run executes. Tasks are declared in
// the configuration file and validated once at orchestrator start.
package registry

import (
	"fmt"
	"time"
)

// Task is one provisioning step, defined at registry-build time. The
// handler is an opaque executable; everything the orchestrator knows
// about it is declared here.
type Task struct {
	// Name uniquely identifies the task. It is the state-store key.
	Name string `yaml:"name" json:"name"`

	// Handler is the external executable or script to invoke. Bare
	// names are resolved via PATH, explicit paths are used as-is.
	Handler string `yaml:"handler" json:"handler"`

	// Args are passed to the handler verbatim.
	Args []string `yaml:"args" json:"args,omitempty"`

	// Group names a parallel group. Tasks sharing a group run
	// concurrently with no ordering among them; an empty group puts the
	// task in the sequential tail, executed in declaration order.
	Group string `yaml:"group" json:"group,omitempty"`

	// RequiresNetwork gates the task on a reachable network.
	RequiresNetwork bool `yaml:"requires_network" json:"requires_network"`

	// RequiresStableNetwork additionally demands consecutive successful
	// probes before the task runs. Implies RequiresNetwork.
	RequiresStableNetwork bool `yaml:"stable_network" json:"stable_network"`

	// Critical raises the log severity of a failure. It does not halt
	// the pipeline; the run always attempts every remaining task.
	Critical bool `yaml:"critical" json:"critical"`

	// Prerequisite names a task whose Success in this run gates this
	// one. Only sequential tasks may declare a prerequisite.
	Prerequisite string `yaml:"prerequisite" json:"prerequisite,omitempty"`

	// SuccessCodes is the set of handler exit codes classified as
	// Success. Empty means {0}.
	SuccessCodes []int `yaml:"success_codes" json:"success_codes,omitempty"`

	// Timeout forcibly terminates the handler when exceeded. Zero falls
	// back to the configured default task timeout.
	Timeout time.Duration `yaml:"timeout" json:"timeout,omitempty"`
}

// Parallel reports whether the task belongs to a parallel group.
func (t Task) Parallel() bool {
	return t.Group != ""
}

// Registry is a validated, ordered task list.
type Registry struct {
	tasks  []Task
	byName map[string]int
}

// New validates the declared tasks and builds a Registry.
// Validation failures are orchestration-fatal: the run must abort
// before any task executes.
func New(tasks []Task) (*Registry, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("task registry is empty")
	}

	byName := make(map[string]int, len(tasks))
	for i, t := range tasks {
		if t.Name == "" {
			return nil, fmt.Errorf("task %d has no name", i)
		}
		if t.Handler == "" {
			return nil, fmt.Errorf("task %q has no handler", t.Name)
		}
		if _, exists := byName[t.Name]; exists {
			return nil, fmt.Errorf("duplicate task name %q", t.Name)
		}
		byName[t.Name] = i
	}

	for i, t := range tasks {
		// Stability is a stronger form of the network requirement.
		if t.RequiresStableNetwork {
			tasks[i].RequiresNetwork = true
		}

		if t.Prerequisite == "" {
			continue
		}
		if t.Parallel() {
			return nil, fmt.Errorf("task %q: prerequisites are only supported for sequential tasks", t.Name)
		}
		prereqIdx, exists := byName[t.Prerequisite]
		if !exists {
			return nil, fmt.Errorf("task %q: prerequisite %q is not in the registry", t.Name, t.Prerequisite)
		}
		if prereqIdx == i {
			return nil, fmt.Errorf("task %q cannot be its own prerequisite", t.Name)
		}
		// The prerequisite must have a chance to finish first: parallel
		// groups all run before the sequential tail, so only a later
		// sequential task is unreachable.
		if !tasks[prereqIdx].Parallel() && prereqIdx > i {
			return nil, fmt.Errorf("task %q: prerequisite %q is declared after it", t.Name, t.Prerequisite)
		}
	}

	return &Registry{tasks: tasks, byName: byName}, nil
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	return len(r.tasks)
}

// Tasks returns all tasks in declaration order.
func (r *Registry) Tasks() []Task {
	out := make([]Task, len(r.tasks))
	copy(out, r.tasks)
	return out
}

// Task returns the task with the given name.
func (r *Registry) Task(name string) (Task, bool) {
	idx, ok := r.byName[name]
	if !ok {
		return Task{}, false
	}
	return r.tasks[idx], true
}

// ParallelGroups returns the parallel groups in the order their group
// IDs first appear in the registry. Members keep declaration order,
// though execution order within a group is unconstrained.
func (r *Registry) ParallelGroups() [][]Task {
	var order []string
	groups := make(map[string][]Task)

	for _, t := range r.tasks {
		if !t.Parallel() {
			continue
		}
		if _, seen := groups[t.Group]; !seen {
			order = append(order, t.Group)
		}
		groups[t.Group] = append(groups[t.Group], t)
	}

	out := make([][]Task, 0, len(order))
	for _, id := range order {
		out = append(out, groups[id])
	}
	return out
}

// Sequential returns the sequential tail in declaration order.
func (r *Registry) Sequential() []Task {
	var out []Task
	for _, t := range r.tasks {
		if !t.Parallel() {
			out = append(out, t)
		}
	}
	return out
}
