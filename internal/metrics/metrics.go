// Package metrics exposes Prometheus collectors for optimization runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sso"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the collectors of one process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	runs        *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	evaluations *prometheus.CounterVec
	steps       *prometheus.CounterVec
	bestValue   *prometheus.GaugeVec
	activeRuns  prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed optimization runs by benchmark and outcome.",
		}, []string{"benchmark", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of optimization runs.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"benchmark"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objective_evaluations_total",
			Help:      "Objective function evaluations across all workers.",
		}, []string{"benchmark"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_steps_total",
			Help:      "Movement steps completed by workers.",
		}, []string{"benchmark"}),
		bestValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_value",
			Help:      "Objective value of the global best of the last successful run.",
		}, []string{"benchmark"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Runs currently in progress.",
		}),
	}

	reg.MustRegister(m.runs, m.runDuration, m.evaluations, m.steps, m.bestValue, m.activeRuns)
	return m
}

// RunStarted marks a run as in progress.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.activeRuns.Inc()
}

// RunSucceeded records a completed run.
func (m *Metrics) RunSucceeded(benchmark string, elapsed time.Duration, evaluations int64, best float64) {
	if m == nil {
		return
	}
	m.activeRuns.Dec()
	m.runs.WithLabelValues(benchmark, OutcomeSuccess).Inc()
	m.runDuration.WithLabelValues(benchmark).Observe(elapsed.Seconds())
	m.evaluations.WithLabelValues(benchmark).Add(float64(evaluations))
	m.bestValue.WithLabelValues(benchmark).Set(best)
}

// RunFailed records a run that aborted.
func (m *Metrics) RunFailed(benchmark string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.activeRuns.Dec()
	m.runs.WithLabelValues(benchmark, OutcomeFailure).Inc()
	m.runDuration.WithLabelValues(benchmark).Observe(elapsed.Seconds())
}

// StepCompleted records one worker step.
func (m *Metrics) StepCompleted(benchmark string) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(benchmark).Inc()
}
