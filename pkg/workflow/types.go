package workflow

import (
	"maps"
	"slices"
	"time"
)

// Status is a workflow state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInReview   Status = "in_review"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusEscalated  Status = "escalated"
	StatusCancelled  Status = "cancelled"
)

// Active reports whether a workflow in this state is still subject to escalation.
// Resolved, cancelled and rejected workflows are not.
func (s Status) Active() bool {
	switch s {
	case StatusResolved, StatusCancelled, StatusRejected:
		return false
	}
	return true
}

// Type classifies why a workflow exists.
type Type string

const (
	TypeRemediation Type = "remediation"
	TypeApproval    Type = "approval"
	TypeEscalation  Type = "escalation"
)

// Valid reports whether t is a known workflow type.
func (t Type) Valid() bool {
	switch t {
	case TypeRemediation, TypeApproval, TypeEscalation:
		return true
	}
	return false
}

// Priority orders workflows by urgency.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// StepStatus is the state of a single workflow step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepActive    StepStatus = "active"
	StepCompleted StepStatus = "completed"
)

// Step is one level of a workflow. Steps before CurrentStepIndex are history.
type Step struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Level             int        `json:"level"`
	AssignedTo        string     `json:"assignedTo,omitempty"`
	AssignedRole      string     `json:"assignedRole,omitempty"`
	Status            StepStatus `json:"status"`
	DueDate           *time.Time `json:"dueDate,omitempty"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
	CompletedBy       string     `json:"completedBy,omitempty"`
	RequiredApprovers int        `json:"requiredApprovers"`
	CurrentApprovers  int        `json:"currentApprovers"`
	Approvers         []string   `json:"approvers,omitempty"`
	EscalatedAt       *time.Time `json:"escalatedAt,omitempty"`
}

// Overdue reports whether the step has a due date before now and is not complete.
func (s *Step) Overdue(now time.Time) bool {
	return s.CompletedAt == nil && s.DueDate != nil && now.After(*s.DueDate)
}

// Comment is a free-text note attached to a workflow.
type Comment struct {
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

// Workflow is the remediation or approval lifecycle of one violation.
type Workflow struct {
	ID               string         `json:"id"`
	ViolationID      string         `json:"violationId"`
	TenantID         string         `json:"tenantId"`
	Type             Type           `json:"type"`
	Status           Status         `json:"status"`
	Priority         Priority       `json:"priority"`
	CreatedAt        time.Time      `json:"createdAt"`
	CreatedBy        string         `json:"createdBy"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	DueDate          *time.Time     `json:"dueDate,omitempty"`
	ApprovalChainID  string         `json:"approvalChainId,omitempty"`
	Steps            []Step         `json:"steps"`
	CurrentStepIndex int            `json:"currentStepIndex"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	Comments         []Comment      `json:"comments,omitempty"`

	// Version is the optimistic concurrency token maintained by the store.
	Version int64 `json:"version"`
}

// CurrentStep returns the active step, or nil once every step is complete.
func (w *Workflow) CurrentStep() *Step {
	if w.CurrentStepIndex < 0 || w.CurrentStepIndex >= len(w.Steps) {
		return nil
	}
	return &w.Steps[w.CurrentStepIndex]
}

// Clone returns a deep copy of w.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	c := *w
	c.DueDate = cloneTime(w.DueDate)
	c.Metadata = maps.Clone(w.Metadata)
	c.Comments = slices.Clone(w.Comments)
	c.Steps = make([]Step, len(w.Steps))
	for i, s := range w.Steps {
		s.DueDate = cloneTime(s.DueDate)
		s.CompletedAt = cloneTime(s.CompletedAt)
		s.EscalatedAt = cloneTime(s.EscalatedAt)
		s.Approvers = slices.Clone(s.Approvers)
		c.Steps[i] = s
	}
	return &c
}

// Transition is an append-only audit record of one successful state change.
type Transition struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflowId"`
	FromStatus  Status         `json:"fromStatus"`
	ToStatus    Status         `json:"toStatus"`
	Action      Action         `json:"action"`
	PerformedBy string         `json:"performedBy"`
	PerformedAt time.Time      `json:"performedAt"`
	Comment     string         `json:"comment,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
