package workflow

import "time"

// EscalationAction is what the sweep does when an escalation rule matches.
type EscalationAction string

const (
	EscalateAction    EscalationAction = "escalate"
	NotifyAction      EscalationAction = "notify"
	AutoApproveAction EscalationAction = "auto_approve"
	AutoRejectAction  EscalationAction = "auto_reject"
)

// Valid reports whether a is a known escalation action.
func (a EscalationAction) Valid() bool {
	switch a {
	case EscalateAction, NotifyAction, AutoApproveAction, AutoRejectAction:
		return true
	}
	return false
}

// EscalationRule is a predicate over an overdue workflow plus the action to apply
// when it holds.
type EscalationRule struct {
	ID         string
	Name       string
	Condition  func(wf *Workflow, now time.Time) bool
	Action     EscalationAction
	EscalateTo string
}

// SystemActor is recorded as PerformedBy on transitions made by the sweep.
const SystemActor = "system"

// DefaultEscalationRules returns the rules installed when none are configured.
func DefaultEscalationRules() []EscalationRule {
	return []EscalationRule{
		{
			ID:   "critical-24h",
			Name: "Escalate critical workflows after 24 hours",
			Condition: func(wf *Workflow, now time.Time) bool {
				return wf.Priority == PriorityCritical && now.Sub(wf.CreatedAt) > 24*time.Hour
			},
			Action:     EscalateAction,
			EscalateTo: "director",
		},
		{
			ID:   "high-72h",
			Name: "Escalate high workflows after 72 hours",
			Condition: func(wf *Workflow, now time.Time) bool {
				return wf.Priority == PriorityHigh && now.Sub(wf.CreatedAt) > 72*time.Hour
			},
			Action:     EscalateAction,
			EscalateTo: "manager",
		},
	}
}

// SweepResult summarizes one CheckEscalations pass.
type SweepResult struct {
	// Checked is the number of active workflows inspected.
	Checked int
	// Overdue is the number whose current step was past due and not yet escalated.
	Overdue int
	// Escalated is the number where at least one rule was applied.
	Escalated int
	// AlreadyEscalated counts overdue steps skipped because a previous sweep handled them.
	AlreadyEscalated int
	// Failed is the number of workflows whose escalation returned an error.
	Failed int
	Errors []error
}
