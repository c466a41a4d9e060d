// Package metrics exposes sentinel's Prometheus metrics.
//
// A single Collector owns the registry and implements the observation hooks of
// the rule evaluator (rules.Metrics), the workflow engine (workflow.Metrics), the
// asynchronous publisher (notify.DeliveryMetrics) and the escalation scheduler
// (escalation.RunMetrics).
//
// # Metric families
//
//   - sentinel_rules_*: matcher runs, durations, matches and failures per rule
//   - sentinel_workflow_*: creations, transitions, refused transitions,
//     version conflicts, notifications and publish failures
//   - sentinel_escalation_*: sweep counts, sweep outcomes and scheduler ticks
//   - sentinel_notify_*: delivery outcomes, attempts and queue depth
//
// rule_id values are capped by a CardinalityLimiter. Rules beyond the limit are
// reported under rule_id="other".
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	mux := http.NewServeMux()
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
package metrics
