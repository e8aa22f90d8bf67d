package metrics

import "github.com/prometheus/client_golang/prometheus"

// NoopRegistry implements Registry with metrics that do nothing. Used
// when monitoring is not configured.
type NoopRegistry struct{}

// NewNoopRegistry creates a registry whose metrics discard all updates.
func NewNoopRegistry() *NoopRegistry {
	return &NoopRegistry{}
}

func (NoopRegistry) NewGauge(prometheus.GaugeOpts) (Gauge, error) {
	return noopGauge{}, nil
}

func (NoopRegistry) NewGaugeVec(prometheus.GaugeOpts, []string) (GaugeVec, error) {
	return noopGaugeVec{}, nil
}

func (NoopRegistry) NewCounter(prometheus.CounterOpts) (Counter, error) {
	return noopCounter{}, nil
}

func (NoopRegistry) NewCounterVec(prometheus.CounterOpts, []string) (CounterVec, error) {
	return noopCounterVec{}, nil
}

type noopGauge struct{}

func (noopGauge) Set(float64) {}

type noopGaugeVec struct{}

func (noopGaugeVec) With(prometheus.Labels) Gauge { return noopGauge{} }

type noopCounter struct{}

func (noopCounter) Inc()        {}
func (noopCounter) Add(float64) {}

type noopCounterVec struct{}

func (noopCounterVec) With(prometheus.Labels) Counter { return noopCounter{} }
