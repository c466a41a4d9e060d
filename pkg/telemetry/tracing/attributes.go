package tracing

import (
	"complyhq/sentinel/pkg/rules"
	"complyhq/sentinel/pkg/workflow"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by sentinel spans. The rules and workflow packages use
// the same names on the spans they open themselves.
const (
	AttrTenantID = "sentinel.tenant_id"

	AttrRuleID      = "rule.id"
	AttrRulePattern = "rule.pattern"
	AttrRuleRisk    = "rule.risk"
	AttrRulesCount  = "rules.count"

	AttrRecordsCount    = "records.count"
	AttrViolationsCount = "violations.count"
	AttrViolationID     = "violation.id"

	AttrWorkflowID       = "workflow.id"
	AttrWorkflowStatus   = "workflow.status"
	AttrWorkflowPriority = "workflow.priority"
	AttrWorkflowAction   = "workflow.action"

	AttrCommand = "sentinel.command"
	AttrSource  = "sentinel.source"
)

// SetRuleAttributes records the identity of a rule on span.
func SetRuleAttributes(span trace.Span, rule *rules.Rule) {
	if rule == nil {
		return
	}
	span.SetAttributes(
		attribute.String(AttrRuleID, rule.ID),
		attribute.String(AttrRulePattern, string(rule.Pattern.Type)),
		attribute.String(AttrRuleRisk, string(rule.Risk.Level)),
	)
}

// SetEvaluationAttributes describes a batch evaluation.
//
//	SetEvaluationAttributes(span, "access.json", len(records), len(ruleSet), len(found))
func SetEvaluationAttributes(span trace.Span, source string, records, ruleCount, violations int) {
	span.SetAttributes(
		attribute.String(AttrSource, source),
		attribute.Int(AttrRecordsCount, records),
		attribute.Int(AttrRulesCount, ruleCount),
		attribute.Int(AttrViolationsCount, violations),
	)
}

// SetViolationAttributes records a violation's identity and tenant.
func SetViolationAttributes(span trace.Span, v *rules.Violation) {
	if v == nil {
		return
	}
	span.SetAttributes(
		attribute.String(AttrViolationID, v.ID),
		attribute.String(AttrRuleID, v.RuleID),
		attribute.String(AttrTenantID, v.TenantID),
	)
}

// SetWorkflowAttributes records a workflow's identity and current state.
func SetWorkflowAttributes(span trace.Span, wf *workflow.Workflow) {
	if wf == nil {
		return
	}
	span.SetAttributes(
		attribute.String(AttrWorkflowID, wf.ID),
		attribute.String(AttrWorkflowStatus, string(wf.Status)),
		attribute.String(AttrWorkflowPriority, string(wf.Priority)),
		attribute.String(AttrTenantID, wf.TenantID),
	)
}
