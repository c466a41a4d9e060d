package metrics

import (
	"time"

	"complyhq/sentinel/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkflowMetrics tracks the remediation workflow engine.
type WorkflowMetrics struct {
	createdTotal        *prometheus.CounterVec
	transitionsTotal    *prometheus.CounterVec
	transitionDuration  *prometheus.HistogramVec
	rejectedTotal       *prometheus.CounterVec
	conflictsTotal      *prometheus.CounterVec
	notificationsTotal  *prometheus.CounterVec
	publishFailureTotal *prometheus.CounterVec
}

// NewWorkflowMetrics creates and registers workflow metrics with the provided registry.
func NewWorkflowMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *WorkflowMetrics {
	wm := &WorkflowMetrics{
		createdTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "workflow",
				Name:      "created_total",
				Help:      "Total number of workflows created",
			},
			[]string{"type", "priority"},
		),

		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "workflow",
				Name:      "transitions_total",
				Help:      "Total number of applied workflow transitions",
			},
			[]string{"action", "from", "to"},
		),

		transitionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "workflow",
				Name:      "transition_duration_seconds",
				Help:      "Duration of a workflow transition including persistence",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"action"},
		),

		rejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "workflow",
				Name:      "transitions_rejected_total",
				Help:      "Total number of transitions refused by the state machine or permissions",
			},
			[]string{"action", "from"},
		),

		conflictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "workflow",
				Name:      "version_conflicts_total",
				Help:      "Total number of optimistic concurrency conflicts",
			},
			[]string{"operation"},
		),

		notificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "workflow",
				Name:      "notifications_total",
				Help:      "Total number of notifications produced by triggers",
			},
			[]string{"event"},
		),

		publishFailureTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "workflow",
				Name:      "publish_failures_total",
				Help:      "Total number of events the publisher failed to accept",
			},
			[]string{"event_type"},
		),
	}

	registry.MustRegister(
		wm.createdTotal,
		wm.transitionsTotal,
		wm.transitionDuration,
		wm.rejectedTotal,
		wm.conflictsTotal,
		wm.notificationsTotal,
		wm.publishFailureTotal,
	)

	return wm
}

// RecordCreated records a new workflow.
func (wm *WorkflowMetrics) RecordCreated(workflowType, priority string) {
	wm.createdTotal.WithLabelValues(workflowType, priority).Inc()
}

// RecordTransition records an applied transition.
func (wm *WorkflowMetrics) RecordTransition(action, from, to string, duration time.Duration) {
	wm.transitionsTotal.WithLabelValues(action, from, to).Inc()
	wm.transitionDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordRejected records a refused transition.
func (wm *WorkflowMetrics) RecordRejected(action, from string) {
	wm.rejectedTotal.WithLabelValues(action, from).Inc()
}

// RecordVersionConflict records a lost compare-and-swap.
func (wm *WorkflowMetrics) RecordVersionConflict(operation string) {
	wm.conflictsTotal.WithLabelValues(operation).Inc()
}

// RecordNotification records a notification produced for event.
func (wm *WorkflowMetrics) RecordNotification(event string) {
	wm.notificationsTotal.WithLabelValues(event).Inc()
}

// RecordPublishFailure records an event the publisher refused.
func (wm *WorkflowMetrics) RecordPublishFailure(eventType string) {
	wm.publishFailureTotal.WithLabelValues(eventType).Inc()
}
