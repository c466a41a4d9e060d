package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("complyhq/sentinel/workflow")

// Engine drives workflows through the approval state machine. All mutations of a
// single workflow are serialized in process and guarded by the store's version
// check across processes. An Engine is safe for concurrent use.
type Engine struct {
	store       Store
	publisher   Publisher
	chains      *ChainRegistry
	metrics     Metrics
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
	maxAttempts int

	locks *keyedMutex

	mu              sync.RWMutex
	escalationRules []EscalationRule
	triggers        []NotificationTrigger
}

// NewEngine creates an engine over store. A nil config uses DefaultConfig.
func NewEngine(store Store, cfg *Config) (*Engine, error) {
	if store == nil {
		return nil, errors.New("workflow store is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxUpdateAttempts == 0 {
		cfg.MaxUpdateAttempts = DefaultConfig().MaxUpdateAttempts
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		store:       store,
		publisher:   cfg.Publisher,
		chains:      cfg.Chains,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		now:         cfg.Now,
		newID:       cfg.NewID,
		maxAttempts: cfg.MaxUpdateAttempts,
		locks:       newKeyedMutex(),
	}
	if e.publisher == nil {
		e.publisher = nopPublisher{}
	}
	if e.chains == nil {
		e.chains = NewChainRegistry()
	}
	if e.metrics == nil {
		e.metrics = nopMetrics{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "workflow.engine")
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}

	e.escalationRules = cfg.EscalationRules
	if e.escalationRules == nil {
		e.escalationRules = DefaultEscalationRules()
	}
	e.triggers = cfg.NotificationTriggers
	if e.triggers == nil {
		e.triggers = DefaultNotificationTriggers()
	}

	return e, nil
}

// Chains returns the engine's approval chain registry.
func (e *Engine) Chains() *ChainRegistry {
	return e.chains
}

// RegisterApprovalChain adds or replaces an approval chain.
func (e *Engine) RegisterApprovalChain(chain ApprovalChain) error {
	return e.chains.Register(chain)
}

// AddEscalationRule appends a rule consulted by later sweeps.
func (e *Engine) AddEscalationRule(rule EscalationRule) error {
	if rule.Condition == nil || !rule.Action.Valid() {
		return &ValidationError{Field: "escalation rule", Message: fmt.Sprintf("rule %s needs a condition and a known action", rule.ID)}
	}
	e.mu.Lock()
	e.escalationRules = append(e.escalationRules, rule)
	e.mu.Unlock()
	return nil
}

// AddNotificationTrigger appends a trigger consulted on later events.
func (e *Engine) AddNotificationTrigger(trigger NotificationTrigger) error {
	if trigger.Event == "" {
		return &ValidationError{Field: "notification trigger", Message: fmt.Sprintf("trigger %s needs an event", trigger.ID)}
	}
	e.mu.Lock()
	e.triggers = append(e.triggers, trigger)
	e.mu.Unlock()
	return nil
}

// CreateWorkflowInput describes a new workflow.
type CreateWorkflowInput struct {
	ViolationID string
	TenantID    string
	Type        Type
	Priority    Priority
	CreatedBy   string

	// ApprovalChainID selects a registered chain. When empty or unknown, the
	// workflow gets a single remediation step due at DueDate.
	ApprovalChainID string
	DueDate         *time.Time
	Metadata        map[string]any
}

func (in *CreateWorkflowInput) validate() error {
	if in.ViolationID == "" {
		return &ValidationError{Field: "violationId", Message: "is required"}
	}
	if in.TenantID == "" {
		return &ValidationError{Field: "tenantId", Message: "is required"}
	}
	if in.CreatedBy == "" {
		return &ValidationError{Field: "createdBy", Message: "is required"}
	}
	if in.Type == "" {
		in.Type = TypeRemediation
	}
	if !in.Type.Valid() {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown workflow type %q", in.Type)}
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !in.Priority.Valid() {
		return &ValidationError{Field: "priority", Message: fmt.Sprintf("unknown priority %q", in.Priority)}
	}
	return nil
}

// CreateWorkflow builds a workflow in the pending state from an approval chain, or
// with a single remediation step when no chain applies.
func (e *Engine) CreateWorkflow(ctx context.Context, in CreateWorkflowInput) (*Workflow, error) {
	ctx, span := tracer.Start(ctx, "workflow.Create")
	defer span.End()

	if err := in.validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	now := e.now()
	wf := &Workflow{
		ID:          e.newID(),
		ViolationID: in.ViolationID,
		TenantID:    in.TenantID,
		Type:        in.Type,
		Status:      StatusPending,
		Priority:    in.Priority,
		CreatedAt:   now,
		CreatedBy:   in.CreatedBy,
		UpdatedAt:   now,
		DueDate:     cloneTime(in.DueDate),
		Metadata:    maps.Clone(in.Metadata),
	}

	if chain, ok := e.chains.Get(in.ApprovalChainID); ok {
		wf.ApprovalChainID = chain.ID
		for _, cs := range chain.Steps {
			due := now.Add(time.Duration(cs.TimeoutHours) * time.Hour)
			wf.Steps = append(wf.Steps, Step{
				ID:                e.newID(),
				Name:              fmt.Sprintf("Level %d Approval (%s)", cs.Level, cs.ApproverRole),
				Level:             cs.Level,
				AssignedRole:      cs.ApproverRole,
				Status:            StepPending,
				DueDate:           &due,
				RequiredApprovers: cs.RequiredApprovals,
			})
		}
	} else {
		if in.ApprovalChainID != "" {
			e.logger.Warn("unknown approval chain, using remediation step",
				"chain_id", in.ApprovalChainID,
				"violation_id", in.ViolationID,
			)
		}
		wf.Steps = []Step{{
			ID:                e.newID(),
			Name:              "Remediation",
			Level:             1,
			Status:            StepPending,
			DueDate:           cloneTime(in.DueDate),
			RequiredApprovers: 1,
		}}
	}
	wf.Steps[0].Status = StepActive

	if err := e.store.Create(ctx, wf); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store create failed")
		return nil, fmt.Errorf("create workflow: %w", err)
	}

	span.SetAttributes(
		attribute.String("workflow.id", wf.ID),
		attribute.String("workflow.priority", string(wf.Priority)),
		attribute.Int("workflow.steps", len(wf.Steps)),
	)
	e.metrics.RecordWorkflowCreated(string(wf.Type), string(wf.Priority))
	e.logger.Info("workflow created",
		"workflow_id", wf.ID,
		"violation_id", wf.ViolationID,
		"tenant_id", wf.TenantID,
		"priority", wf.Priority,
		"chain_id", wf.ApprovalChainID,
		"steps", len(wf.Steps),
	)

	snapshot := wf.Clone()
	e.publish(ctx, Event{Type: EventCreated, Workflow: snapshot})
	e.fireNotifications(ctx, NotifyCreated, snapshot)

	return wf.Clone(), nil
}

// TransitionInput requests a state change.
type TransitionInput struct {
	WorkflowID  string
	Action      Action
	PerformedBy string
	Comment     string
	Metadata    map[string]any
}

// Transition applies an action to a workflow and appends one audit record.
//
// Approvals count toward the current step. When a step collects its required
// approvals the workflow advances to the next step and stays in review; completing
// the last step moves it to approved. An action the state machine does not allow
// returns an *InvalidTransitionError and leaves the workflow untouched.
func (e *Engine) Transition(ctx context.Context, in TransitionInput) (*Workflow, error) {
	wf, _, err := e.transition(ctx, in, nil)
	return wf, err
}

func (e *Engine) transition(ctx context.Context, in TransitionInput, after func(wf *Workflow)) (*Workflow, *Transition, error) {
	ctx, span := tracer.Start(ctx, "workflow.Transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("workflow.id", in.WorkflowID),
		attribute.String("workflow.action", string(in.Action)),
	)

	if in.PerformedBy == "" {
		return nil, nil, &ValidationError{Field: "performedBy", Message: "is required"}
	}

	start := time.Now()
	var from Status
	wf, tr, err := e.mutate(ctx, in.WorkflowID, "transition", func(wf *Workflow, now time.Time) (*Transition, error) {
		from = wf.Status
		tr, err := e.apply(wf, in, now)
		if err != nil {
			return nil, err
		}
		if after != nil {
			after(wf)
		}
		return tr, nil
	})
	if err != nil {
		var invalid *InvalidTransitionError
		if errors.As(err, &invalid) {
			e.metrics.RecordTransitionRejected(string(in.Action), string(from))
			e.logger.Warn("transition rejected",
				"workflow_id", in.WorkflowID,
				"action", in.Action,
				"from", from,
			)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition failed")
		return nil, nil, err
	}

	e.metrics.RecordTransition(string(tr.Action), string(tr.FromStatus), string(tr.ToStatus), time.Since(start))
	e.logger.Info("workflow transitioned",
		"workflow_id", wf.ID,
		"action", tr.Action,
		"from", tr.FromStatus,
		"to", tr.ToStatus,
		"performed_by", tr.PerformedBy,
		"step_index", wf.CurrentStepIndex,
	)

	e.publish(ctx, Event{Type: EventTransitioned, Workflow: wf.Clone(), Transition: tr})
	event := NotificationEvent(tr.Action)
	if tr.Action == ActionApprove && tr.ToStatus != StatusApproved {
		event = NotifyStepApproved
	}
	e.fireNotifications(ctx, event, wf)

	return wf.Clone(), tr, nil
}

// apply mutates wf in place according to in and returns the audit record.
func (e *Engine) apply(wf *Workflow, in TransitionInput, now time.Time) (*Transition, error) {
	target, ok := TargetStatus(in.Action)
	if !ok {
		return nil, &InvalidTransitionError{WorkflowID: wf.ID, From: wf.Status, Action: in.Action}
	}
	from := wf.Status
	if !CanTransition(from, target) {
		return nil, &InvalidTransitionError{WorkflowID: wf.ID, From: from, To: target, Action: in.Action}
	}

	to := target
	step := wf.CurrentStep()
	switch in.Action {
	case ActionApprove:
		if step != nil {
			to = approveStep(wf, step, in.PerformedBy, now)
		}
	case ActionResolve:
		if step != nil && step.CompletedAt == nil {
			completeStep(step, in.PerformedBy, now)
		}
	}

	wf.Status = to
	wf.UpdatedAt = now

	return &Transition{
		ID:          e.newID(),
		WorkflowID:  wf.ID,
		FromStatus:  from,
		ToStatus:    to,
		Action:      in.Action,
		PerformedBy: in.PerformedBy,
		PerformedAt: now,
		Comment:     in.Comment,
		Metadata:    maps.Clone(in.Metadata),
	}, nil
}

// approveStep records one approval and returns the resulting workflow status.
// An approver is counted once per step.
func approveStep(wf *Workflow, step *Step, by string, now time.Time) Status {
	if step.CurrentApprovers < step.RequiredApprovers && !slices.Contains(step.Approvers, by) {
		step.CurrentApprovers++
		step.Approvers = append(step.Approvers, by)
	}
	step.CompletedBy = by

	if step.CurrentApprovers < step.RequiredApprovers {
		return StatusInReview
	}

	completeStep(step, by, now)
	wf.CurrentStepIndex++
	if next := wf.CurrentStep(); next != nil {
		next.Status = StepActive
		return StatusInReview
	}
	return StatusApproved
}

func completeStep(step *Step, by string, now time.Time) {
	at := now
	step.Status = StepCompleted
	step.CompletedAt = &at
	step.CompletedBy = by
}

// Assign sets the assignee of the current step. The workflow status is unchanged.
func (e *Engine) Assign(ctx context.Context, workflowID, assignedTo, assignedBy string) (*Workflow, error) {
	ctx, span := tracer.Start(ctx, "workflow.Assign")
	defer span.End()
	span.SetAttributes(attribute.String("workflow.id", workflowID))

	if assignedTo == "" {
		return nil, &ValidationError{Field: "assignedTo", Message: "is required"}
	}

	var assignment Assignment
	wf, _, err := e.mutate(ctx, workflowID, "assign", func(wf *Workflow, now time.Time) (*Transition, error) {
		step := wf.CurrentStep()
		if step == nil {
			return nil, fmt.Errorf("workflow %s: %w", wf.ID, ErrNoActiveStep)
		}
		assignment = Assignment{
			StepID:     step.ID,
			AssignedTo: assignedTo,
			AssignedBy: assignedBy,
			Previous:   step.AssignedTo,
		}
		step.AssignedTo = assignedTo
		wf.UpdatedAt = now
		return nil, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assign failed")
		return nil, err
	}

	e.logger.Info("workflow step assigned",
		"workflow_id", wf.ID,
		"step_id", assignment.StepID,
		"assigned_to", assignedTo,
		"assigned_by", assignedBy,
	)
	e.publish(ctx, Event{Type: EventAssigned, Workflow: wf.Clone(), Assignment: &assignment})
	e.fireNotifications(ctx, NotifyAssigned, wf)

	return wf.Clone(), nil
}

// AddComment appends a comment. The workflow status is unchanged.
func (e *Engine) AddComment(ctx context.Context, workflowID, text, author string) (*Workflow, error) {
	ctx, span := tracer.Start(ctx, "workflow.AddComment")
	defer span.End()
	span.SetAttributes(attribute.String("workflow.id", workflowID))

	if text == "" {
		return nil, &ValidationError{Field: "comment", Message: "must not be empty"}
	}

	var comment Comment
	wf, _, err := e.mutate(ctx, workflowID, "comment", func(wf *Workflow, now time.Time) (*Transition, error) {
		comment = Comment{Text: text, Author: author, Timestamp: now}
		wf.Comments = append(wf.Comments, comment)
		wf.UpdatedAt = now
		return nil, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "comment failed")
		return nil, err
	}

	e.logger.Debug("workflow comment added", "workflow_id", wf.ID, "author", author)
	e.publish(ctx, Event{Type: EventCommented, Workflow: wf.Clone(), Comment: &comment})

	return wf.Clone(), nil
}

// GetWorkflow returns a workflow by id.
func (e *Engine) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	return e.store.Get(ctx, id)
}

// GetWorkflowsByViolation returns every workflow created for a violation.
func (e *Engine) GetWorkflowsByViolation(ctx context.Context, violationID string) ([]*Workflow, error) {
	return e.store.ListByViolation(ctx, violationID)
}

// ListWorkflows returns every workflow of a tenant.
func (e *Engine) ListWorkflows(ctx context.Context, tenantID string) ([]*Workflow, error) {
	return e.store.ListByTenant(ctx, tenantID)
}

// GetTransitionHistory returns the audit trail of a workflow, oldest first.
func (e *Engine) GetTransitionHistory(ctx context.Context, workflowID string) ([]*Transition, error) {
	if _, err := e.store.Get(ctx, workflowID); err != nil {
		return nil, err
	}
	return e.store.ListTransitions(ctx, workflowID)
}

// mutate runs fn against a fresh copy of the workflow under the per-workflow lock
// and writes the result with a version check, retrying on conflict.
func (e *Engine) mutate(ctx context.Context, id, op string, fn func(wf *Workflow, now time.Time) (*Transition, error)) (*Workflow, *Transition, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		wf, err := e.store.Get(ctx, id)
		if err != nil {
			return nil, nil, err
		}

		expected := wf.Version
		tr, err := fn(wf, e.now())
		if err != nil {
			return nil, nil, err
		}

		err = e.store.Update(ctx, wf, expected, tr)
		if err == nil {
			return wf, tr, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, nil, err
		}

		e.metrics.RecordVersionConflict(op)
		e.logger.Warn("workflow version conflict, retrying",
			"workflow_id", id,
			"operation", op,
			"attempt", attempt,
		)
	}

	return nil, nil, fmt.Errorf("%s workflow %s after %d attempts: %w", op, id, e.maxAttempts, ErrVersionConflict)
}

func (e *Engine) publish(ctx context.Context, ev Event) {
	ev.ID = e.newID()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}
	if ev.Workflow != nil {
		ev.WorkflowID = ev.Workflow.ID
		ev.TenantID = ev.Workflow.TenantID
	}

	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.metrics.RecordPublishFailure(string(ev.Type))
		e.logger.Error("failed to publish workflow event",
			"event", ev.Type,
			"workflow_id", ev.WorkflowID,
			"error", err,
		)
	}
}

// fireNotifications publishes a notification:send event for every trigger
// registered for event whose condition holds. It returns the number fired.
func (e *Engine) fireNotifications(ctx context.Context, event string, wf *Workflow) int {
	e.mu.RLock()
	triggers := slices.Clone(e.triggers)
	e.mu.RUnlock()

	fired := 0
	for _, t := range triggers {
		if t.Event != event {
			continue
		}
		if t.Condition != nil && !t.Condition(wf) {
			continue
		}
		recipients := resolveRecipients(t.Recipients, wf)
		if len(recipients) == 0 {
			e.logger.Debug("notification trigger has no recipients", "trigger_id", t.ID, "workflow_id", wf.ID)
			continue
		}

		e.publish(ctx, Event{
			Type:     EventNotification,
			Workflow: wf.Clone(),
			Notification: &Notification{
				TriggerID:  t.ID,
				Event:      event,
				Recipients: recipients,
				Channels:   slices.Clone(t.Channels),
				Template:   t.Template,
			},
		})
		e.metrics.RecordNotification(event)
		fired++
	}
	return fired
}
