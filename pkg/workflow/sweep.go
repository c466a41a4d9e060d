package workflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// CheckEscalations inspects every active workflow whose current step is past due
// and applies each escalation rule whose condition holds, in registration order.
//
// A step is escalated at most once: after rules are applied the step is stamped
// with EscalatedAt and later sweeps skip it. A failure on one workflow is recorded
// in the result and never stops the sweep. The returned error is non-nil only when
// the active workflows cannot be listed or ctx is cancelled.
func (e *Engine) CheckEscalations(ctx context.Context) (SweepResult, error) {
	ctx, span := tracer.Start(ctx, "workflow.CheckEscalations")
	defer span.End()

	start := time.Now()
	var result SweepResult

	active, err := e.store.ListActive(ctx)
	if err != nil {
		span.RecordError(err)
		return result, fmt.Errorf("list active workflows: %w", err)
	}

	e.mu.RLock()
	rules := slices.Clone(e.escalationRules)
	e.mu.RUnlock()

	now := e.now()
	for _, wf := range active {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Checked++

		step := wf.CurrentStep()
		if step == nil || !step.Overdue(now) {
			continue
		}
		if step.EscalatedAt != nil {
			result.AlreadyEscalated++
			continue
		}
		result.Overdue++

		applied, err := e.escalate(ctx, wf, step.ID, rules, now)
		if applied > 0 {
			result.Escalated++
		}
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("workflow %s: %w", wf.ID, err))
			e.logger.Error("escalation failed",
				"workflow_id", wf.ID,
				"status", wf.Status,
				"error", err,
			)
		}
	}

	span.SetAttributes(
		attribute.Int("sweep.checked", result.Checked),
		attribute.Int("sweep.escalated", result.Escalated),
		attribute.Int("sweep.failed", result.Failed),
	)
	e.metrics.RecordEscalationSweep(result, time.Since(start))
	e.logger.Info("escalation sweep complete",
		"checked", result.Checked,
		"overdue", result.Overdue,
		"escalated", result.Escalated,
		"already_escalated", result.AlreadyEscalated,
		"failed", result.Failed,
		"duration", time.Since(start),
	)

	return result, nil
}

// escalate applies every matching rule to one workflow and stamps the overdue step.
// Conditions see the workflow as it was when the sweep listed it.
func (e *Engine) escalate(ctx context.Context, wf *Workflow, stepID string, rules []EscalationRule, now time.Time) (int, error) {
	applied := 0
	var errs []error
	for _, rule := range rules {
		if !rule.Condition(wf, now) {
			continue
		}
		if err := e.applyEscalationRule(ctx, wf.ID, rule); err != nil {
			errs = append(errs, fmt.Errorf("rule %s: %w", rule.ID, err))
			continue
		}
		applied++
		e.logger.Info("escalation rule applied",
			"workflow_id", wf.ID,
			"rule_id", rule.ID,
			"action", rule.Action,
			"escalate_to", rule.EscalateTo,
		)
	}

	if applied > 0 {
		if err := e.markEscalated(ctx, wf.ID, stepID); err != nil {
			errs = append(errs, fmt.Errorf("mark escalated: %w", err))
		}
	}
	return applied, errors.Join(errs...)
}

func (e *Engine) applyEscalationRule(ctx context.Context, workflowID string, rule EscalationRule) error {
	switch rule.Action {
	case EscalateAction:
		current, err := e.store.Get(ctx, workflowID)
		if err != nil {
			return err
		}
		if current.Status == StatusEscalated {
			return e.reassignEscalated(ctx, workflowID, rule)
		}

		var assignment *Assignment
		wf, err := e.systemTransition(ctx, workflowID, ActionEscalate, rule, func(wf *Workflow) {
			step := wf.CurrentStep()
			if step == nil || rule.EscalateTo == "" {
				return
			}
			assignment = &Assignment{
				StepID:     step.ID,
				AssignedTo: rule.EscalateTo,
				AssignedBy: SystemActor,
				Previous:   step.AssignedTo,
			}
			step.AssignedTo = rule.EscalateTo
		})
		if err != nil {
			return err
		}
		if assignment != nil {
			e.publish(ctx, Event{Type: EventAssigned, Workflow: wf, Assignment: assignment})
		}
		return nil

	case NotifyAction:
		wf, err := e.store.Get(ctx, workflowID)
		if err != nil {
			return err
		}
		e.fireNotifications(ctx, NotifyEscalated, wf)
		return nil

	case AutoApproveAction:
		_, err := e.systemTransition(ctx, workflowID, ActionApprove, rule, nil)
		return err

	case AutoRejectAction:
		_, err := e.systemTransition(ctx, workflowID, ActionReject, rule, nil)
		return err
	}
	return fmt.Errorf("unknown escalation action %q", rule.Action)
}

// reassignEscalated routes the current step of a workflow that is already
// escalated to rule.EscalateTo. No transition is recorded.
func (e *Engine) reassignEscalated(ctx context.Context, workflowID string, rule EscalationRule) error {
	var assignment *Assignment
	wf, _, err := e.mutate(ctx, workflowID, "escalate_reassign", func(wf *Workflow, now time.Time) (*Transition, error) {
		step := wf.CurrentStep()
		if step == nil {
			return nil, fmt.Errorf("workflow %s: %w", wf.ID, ErrNoActiveStep)
		}
		assignment = nil
		if rule.EscalateTo == "" || step.AssignedTo == rule.EscalateTo {
			return nil, nil
		}
		assignment = &Assignment{
			StepID:     step.ID,
			AssignedTo: rule.EscalateTo,
			AssignedBy: SystemActor,
			Previous:   step.AssignedTo,
		}
		step.AssignedTo = rule.EscalateTo
		wf.UpdatedAt = now
		return nil, nil
	})
	if err != nil {
		return err
	}
	if assignment != nil {
		e.publish(ctx, Event{Type: EventAssigned, Workflow: wf.Clone(), Assignment: assignment})
	}
	return nil
}

// systemTransition performs action on behalf of the sweep. A pending workflow is
// submitted for review first so the action follows the state machine.
func (e *Engine) systemTransition(ctx context.Context, workflowID string, action Action, rule EscalationRule, after func(*Workflow)) (*Workflow, error) {
	current, err := e.store.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	meta := map[string]any{"escalationRule": rule.ID}

	if current.Status == StatusPending {
		_, _, err := e.transition(ctx, TransitionInput{
			WorkflowID:  workflowID,
			Action:      ActionSubmit,
			PerformedBy: SystemActor,
			Comment:     "submitted for escalation: " + rule.Name,
			Metadata:    meta,
		}, nil)
		if err != nil {
			return nil, err
		}
	}

	wf, _, err := e.transition(ctx, TransitionInput{
		WorkflowID:  workflowID,
		Action:      action,
		PerformedBy: SystemActor,
		Comment:     rule.Name,
		Metadata:    meta,
	}, after)
	return wf, err
}

func (e *Engine) markEscalated(ctx context.Context, workflowID, stepID string) error {
	_, _, err := e.mutate(ctx, workflowID, "mark_escalated", func(wf *Workflow, now time.Time) (*Transition, error) {
		for i := range wf.Steps {
			if wf.Steps[i].ID == stepID {
				at := now
				wf.Steps[i].EscalatedAt = &at
				wf.UpdatedAt = now
				return nil, nil
			}
		}
		return nil, fmt.Errorf("step %s not found", stepID)
	})
	return err
}
