package metrics

import (
	"sync"
	"time"

	"complyhq/sentinel/pkg/config"
	"complyhq/sentinel/pkg/escalation"
	"complyhq/sentinel/pkg/notify"
	"complyhq/sentinel/pkg/rules"
	"complyhq/sentinel/pkg/workflow"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	_ rules.Metrics          = (*Collector)(nil)
	_ workflow.Metrics       = (*Collector)(nil)
	_ notify.DeliveryMetrics = (*Collector)(nil)
	_ escalation.RunMetrics  = (*Collector)(nil)
)

// otherLabel replaces a rule ID once the cardinality limit is reached.
const otherLabel = "other"

// DefaultMaxRuleCardinality bounds the number of distinct rule_id label values.
const DefaultMaxRuleCardinality = 2000

// Collector owns the Prometheus registry and every sentinel metric. It satisfies
// the metrics interfaces of the rules, workflow, notify and escalation packages
// so one instance can be handed to each of them.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	ruleMetrics       *RuleMetrics
	workflowMetrics   *WorkflowMetrics
	escalationMetrics *EscalationMetrics
	deliveryMetrics   *DeliveryMetrics

	ruleCardinality *CardinalityLimiter
}

// NewCollector creates a collector and registers all metrics with registry. A nil
// registry gets a fresh one.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	evaluator, err := rules.NewEvaluator(&rules.Config{MaxParallelRules: 4, Metrics: collector})
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg == nil {
		cfg = &config.MetricsConfig{}
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}

	return &Collector{
		config:            cfg,
		registry:          registry,
		ruleMetrics:       NewRuleMetrics(cfg, registry),
		workflowMetrics:   NewWorkflowMetrics(cfg, registry),
		escalationMetrics: NewEscalationMetrics(cfg, registry),
		deliveryMetrics:   NewDeliveryMetrics(cfg, registry),
		ruleCardinality:   NewCardinalityLimiter(DefaultMaxRuleCardinality),
	}
}

func (c *Collector) ruleLabel(ruleID string) string {
	if c.ruleCardinality.Allow(ruleID) {
		return ruleID
	}
	return otherLabel
}

// RecordRuleEvaluation implements rules.Metrics.
func (c *Collector) RecordRuleEvaluation(ruleID, pattern string, matches int, duration time.Duration) {
	c.ruleMetrics.RecordEvaluation(c.ruleLabel(ruleID), pattern, matches, duration)
}

// RecordRuleError implements rules.Metrics.
func (c *Collector) RecordRuleError(ruleID, reason string) {
	c.ruleMetrics.RecordError(c.ruleLabel(ruleID), reason)
}

// RecordWorkflowCreated implements workflow.Metrics.
func (c *Collector) RecordWorkflowCreated(workflowType, priority string) {
	c.workflowMetrics.RecordCreated(workflowType, priority)
}

// RecordTransition implements workflow.Metrics.
func (c *Collector) RecordTransition(action, from, to string, duration time.Duration) {
	c.workflowMetrics.RecordTransition(action, from, to, duration)
}

// RecordTransitionRejected implements workflow.Metrics.
func (c *Collector) RecordTransitionRejected(action, from string) {
	c.workflowMetrics.RecordRejected(action, from)
}

// RecordVersionConflict implements workflow.Metrics.
func (c *Collector) RecordVersionConflict(operation string) {
	c.workflowMetrics.RecordVersionConflict(operation)
}

// RecordNotification implements workflow.Metrics.
func (c *Collector) RecordNotification(event string) {
	c.workflowMetrics.RecordNotification(event)
}

// RecordPublishFailure implements workflow.Metrics.
func (c *Collector) RecordPublishFailure(eventType string) {
	c.workflowMetrics.RecordPublishFailure(eventType)
}

// RecordEscalationSweep implements workflow.Metrics.
func (c *Collector) RecordEscalationSweep(result workflow.SweepResult, duration time.Duration) {
	c.escalationMetrics.RecordSweep(result, duration)
}

// RecordScheduledSweep implements escalation.RunMetrics.
func (c *Collector) RecordScheduledSweep(outcome string, duration time.Duration) {
	c.escalationMetrics.RecordScheduledRun(outcome, duration)
}

// RecordDelivery implements notify.DeliveryMetrics.
func (c *Collector) RecordDelivery(eventType string, delivered bool, attempts int, duration time.Duration) {
	c.deliveryMetrics.RecordDelivery(eventType, delivered, attempts, duration)
}

// RecordQueueDepth implements notify.DeliveryMetrics.
func (c *Collector) RecordQueueDepth(depth int) {
	c.deliveryMetrics.SetQueueDepth(depth)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter caps the number of unique values admitted for a label.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter admitting at most maxCardinality values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is already tracked or still fits under the limit.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the number of tracked values.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
