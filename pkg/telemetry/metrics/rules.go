package metrics

import (
	"strconv"
	"time"

	"complyhq/sentinel/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RuleMetrics tracks rule evaluation.
//
// Metrics:
//   - sentinel_rules_evaluations_total: matcher runs by rule and pattern type
//   - sentinel_rules_evaluation_duration_seconds: matcher duration by pattern type
//   - sentinel_rules_matches_total: violations produced by rule
//   - sentinel_rules_errors_total: matcher failures by rule and reason
type RuleMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	matchesTotal       *prometheus.CounterVec
	errorsTotal        *prometheus.CounterVec
}

// NewRuleMetrics creates and registers rule metrics with the provided registry.
func NewRuleMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RuleMetrics {
	rm := &RuleMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "rules",
				Name:      "evaluations_total",
				Help:      "Total number of rule matcher runs",
			},
			[]string{"rule_id", "pattern", "matched"},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "rules",
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of a rule matcher run in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
			},
			[]string{"pattern"},
		),

		matchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "rules",
				Name:      "matches_total",
				Help:      "Total number of violations produced by a rule",
			},
			[]string{"rule_id"},
		),

		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "rules",
				Name:      "errors_total",
				Help:      "Total number of rule matcher failures",
			},
			[]string{"rule_id", "reason"},
		),
	}

	registry.MustRegister(
		rm.evaluationsTotal,
		rm.evaluationDuration,
		rm.matchesTotal,
		rm.errorsTotal,
	)

	return rm
}

// RecordEvaluation records one matcher run over a batch.
func (rm *RuleMetrics) RecordEvaluation(ruleID, pattern string, matches int, duration time.Duration) {
	rm.evaluationsTotal.WithLabelValues(ruleID, pattern, strconv.FormatBool(matches > 0)).Inc()
	rm.evaluationDuration.WithLabelValues(pattern).Observe(duration.Seconds())
	if matches > 0 {
		rm.matchesTotal.WithLabelValues(ruleID).Add(float64(matches))
	}
}

// RecordError records a matcher failure such as a panic or a bad condition.
func (rm *RuleMetrics) RecordError(ruleID, reason string) {
	rm.errorsTotal.WithLabelValues(ruleID, reason).Inc()
}
