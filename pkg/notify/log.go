package notify

import (
	"context"
	"log/slog"

	"complyhq/sentinel/pkg/workflow"
)

// LogPublisher writes each event as a structured log line.
type LogPublisher struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogPublisher creates a publisher that logs at level.
func NewLogPublisher(logger *slog.Logger, level slog.Level) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{
		logger: logger.With("component", "notify.log"),
		level:  level,
	}
}

// Publish implements workflow.Publisher.
func (p *LogPublisher) Publish(ctx context.Context, ev workflow.Event) error {
	attrs := []any{
		"event_id", ev.ID,
		"workflow_id", ev.WorkflowID,
		"tenant_id", ev.TenantID,
	}
	if ev.Workflow != nil {
		attrs = append(attrs, "status", ev.Workflow.Status, "priority", ev.Workflow.Priority)
	}
	if ev.Transition != nil {
		attrs = append(attrs,
			"action", ev.Transition.Action,
			"from", ev.Transition.FromStatus,
			"to", ev.Transition.ToStatus,
			"performed_by", ev.Transition.PerformedBy,
		)
	}
	if ev.Assignment != nil {
		attrs = append(attrs, "assigned_to", ev.Assignment.AssignedTo, "assigned_by", ev.Assignment.AssignedBy)
	}
	if ev.Notification != nil {
		attrs = append(attrs,
			"notification", ev.Notification.Event,
			"recipients", ev.Notification.Recipients,
			"channels", ev.Notification.Channels,
			"template", ev.Notification.Template,
		)
	}

	p.logger.Log(ctx, p.level, string(ev.Type), attrs...)
	return nil
}
