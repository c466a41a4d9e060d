package metrics

import (
	"time"

	"complyhq/sentinel/pkg/config"
	"complyhq/sentinel/pkg/workflow"

	"github.com/prometheus/client_golang/prometheus"
)

// EscalationMetrics tracks escalation sweeps and the scheduler driving them.
//
// Metrics:
//   - sentinel_escalation_sweeps_total: completed sweeps
//   - sentinel_escalation_sweep_duration_seconds: sweep duration
//   - sentinel_escalation_sweep_workflows_total: workflows per sweep outcome
//   - sentinel_escalation_last_sweep_timestamp_seconds: completion time of the last sweep
//   - sentinel_escalation_scheduled_runs_total: scheduler ticks by outcome
type EscalationMetrics struct {
	sweepsTotal        prometheus.Counter
	sweepDuration      prometheus.Histogram
	workflowsTotal     *prometheus.CounterVec
	lastSweep          prometheus.Gauge
	scheduledRunsTotal *prometheus.CounterVec
	scheduledDuration  *prometheus.HistogramVec
}

// NewEscalationMetrics creates and registers escalation metrics with the provided registry.
func NewEscalationMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *EscalationMetrics {
	buckets := []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300}

	em := &EscalationMetrics{
		sweepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "escalation",
			Name:      "sweeps_total",
			Help:      "Total number of completed escalation sweeps",
		}),

		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "escalation",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of an escalation sweep in seconds",
			Buckets:   buckets,
		}),

		workflowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "escalation",
				Name:      "sweep_workflows_total",
				Help:      "Workflows seen by escalation sweeps, by outcome",
			},
			[]string{"outcome"},
		),

		lastSweep: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "escalation",
			Name:      "last_sweep_timestamp_seconds",
			Help:      "Unix time at which the last escalation sweep completed",
		}),

		scheduledRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "escalation",
				Name:      "scheduled_runs_total",
				Help:      "Scheduler ticks by outcome",
			},
			[]string{"outcome"},
		),

		scheduledDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "escalation",
				Name:      "scheduled_run_duration_seconds",
				Help:      "Duration of a scheduler tick including lock acquisition",
				Buckets:   buckets,
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		em.sweepsTotal,
		em.sweepDuration,
		em.workflowsTotal,
		em.lastSweep,
		em.scheduledRunsTotal,
		em.scheduledDuration,
	)

	return em
}

// RecordSweep records the result of one escalation sweep.
func (em *EscalationMetrics) RecordSweep(result workflow.SweepResult, duration time.Duration) {
	em.sweepsTotal.Inc()
	em.sweepDuration.Observe(duration.Seconds())
	em.workflowsTotal.WithLabelValues("checked").Add(float64(result.Checked))
	em.workflowsTotal.WithLabelValues("overdue").Add(float64(result.Overdue))
	em.workflowsTotal.WithLabelValues("escalated").Add(float64(result.Escalated))
	em.workflowsTotal.WithLabelValues("already_escalated").Add(float64(result.AlreadyEscalated))
	em.workflowsTotal.WithLabelValues("failed").Add(float64(result.Failed))
	em.lastSweep.SetToCurrentTime()
}

// RecordScheduledRun records one scheduler tick.
func (em *EscalationMetrics) RecordScheduledRun(outcome string, duration time.Duration) {
	em.scheduledRunsTotal.WithLabelValues(outcome).Inc()
	em.scheduledDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}
