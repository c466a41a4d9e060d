package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const (
	tenantKey    contextKey = "tenant_id"
	workflowKey  contextKey = "workflow_id"
	violationKey contextKey = "violation_id"
	ruleKey      contextKey = "rule_id"
	actorKey     contextKey = "actor"
	commandKey   contextKey = "command"
)

// contextKeys are emitted in this order.
var contextKeys = []contextKey{commandKey, tenantKey, workflowKey, violationKey, ruleKey, actorKey}

// WithTenant adds a tenant id to ctx.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey, tenantID)
}

// WithWorkflowID adds a workflow id to ctx.
func WithWorkflowID(ctx context.Context, workflowID string) context.Context {
	return context.WithValue(ctx, workflowKey, workflowID)
}

// WithViolationID adds a violation id to ctx.
func WithViolationID(ctx context.Context, violationID string) context.Context {
	return context.WithValue(ctx, violationKey, violationID)
}

// WithRuleID adds a rule id to ctx.
func WithRuleID(ctx context.Context, ruleID string) context.Context {
	return context.WithValue(ctx, ruleKey, ruleID)
}

// WithActor adds the acting user to ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// WithCommand adds the CLI command name to ctx.
func WithCommand(ctx context.Context, command string) context.Context {
	return context.WithValue(ctx, commandKey, command)
}

// GetWorkflowID returns the workflow id stored in ctx.
func GetWorkflowID(ctx context.Context) string {
	v, _ := ctx.Value(workflowKey).(string)
	return v
}

// GetTenant returns the tenant id stored in ctx.
func GetTenant(ctx context.Context) string {
	v, _ := ctx.Value(tenantKey).(string)
	return v
}

// contextAttrs returns the correlation attributes carried by ctx.
func contextAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	for _, k := range contextKeys {
		if v, ok := ctx.Value(k).(string); ok && v != "" {
			attrs = append(attrs, slog.String(string(k), v))
		}
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return attrs
}
