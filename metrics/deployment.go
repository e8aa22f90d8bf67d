package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Deployment holds the metric set for deployment runs.
type Deployment struct {
	runsTotal    Counter
	tasksTotal   CounterVec
	taskDuration GaugeVec
	runDuration  Gauge
}

// NewDeployment creates and registers the deployment metrics on the
// given registry.
func NewDeployment(reg Registry) (*Deployment, error) {
	runsTotal, err := reg.NewCounter(prometheus.CounterOpts{
		Name: "runs_total",
		Help: "Total number of deployment runs started.",
	})
	if err != nil {
		return nil, fmt.Errorf("creating runs_total: %w", err)
	}

	tasksTotal, err := reg.NewCounterVec(prometheus.CounterOpts{
		Name: "tasks_total",
		Help: "Total number of task outcomes, by terminal status.",
	}, []string{"status"})
	if err != nil {
		return nil, fmt.Errorf("creating tasks_total: %w", err)
	}

	taskDuration, err := reg.NewGaugeVec(prometheus.GaugeOpts{
		Name: "task_duration_seconds",
		Help: "Handler runtime of the most recent execution of each task.",
	}, []string{"task"})
	if err != nil {
		return nil, fmt.Errorf("creating task_duration_seconds: %w", err)
	}

	runDuration, err := reg.NewGauge(prometheus.GaugeOpts{
		Name: "run_duration_seconds",
		Help: "Wall-clock duration of the most recent deployment run.",
	})
	if err != nil {
		return nil, fmt.Errorf("creating run_duration_seconds: %w", err)
	}

	return &Deployment{
		runsTotal:    runsTotal,
		tasksTotal:   tasksTotal,
		taskDuration: taskDuration,
		runDuration:  runDuration,
	}, nil
}

// RunStarted records the start of a deployment run.
func (d *Deployment) RunStarted() {
	d.runsTotal.Inc()
}

// ObserveTask records one task's terminal status and duration.
func (d *Deployment) ObserveTask(task, status string, seconds float64) {
	d.tasksTotal.With(prometheus.Labels{"status": status}).Inc()
	d.taskDuration.With(prometheus.Labels{"task": task}).Set(seconds)
}

// ObserveRun records the total run duration.
func (d *Deployment) ObserveRun(seconds float64) {
	d.runDuration.Set(seconds)
}
