package workflow

import "fmt"

// Action is a request to move a workflow to another state.
type Action string

const (
	ActionSubmit   Action = "submit"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionAssign   Action = "assign"
	ActionResolve  Action = "resolve"
	ActionEscalate Action = "escalate"
	ActionCancel   Action = "cancel"

	// ActionReopen returns a rejected workflow to pending for resubmission.
	ActionReopen Action = "reopen"
)

var actionTargets = map[Action]Status{
	ActionSubmit:   StatusInReview,
	ActionApprove:  StatusApproved,
	ActionReject:   StatusRejected,
	ActionAssign:   StatusInProgress,
	ActionResolve:  StatusResolved,
	ActionEscalate: StatusEscalated,
	ActionCancel:   StatusCancelled,
	ActionReopen:   StatusPending,
}

var pastTense = map[Action]string{
	ActionSubmit:   "submitted",
	ActionApprove:  "approved",
	ActionReject:   "rejected",
	ActionAssign:   "assigned",
	ActionResolve:  "resolved",
	ActionEscalate: "escalated",
	ActionCancel:   "cancelled",
	ActionReopen:   "reopened",
}

// transitions lists the allowed targets per state. States without an entry are final.
var transitions = map[Status][]Status{
	StatusPending:    {StatusInReview, StatusCancelled},
	StatusInReview:   {StatusApproved, StatusRejected, StatusEscalated, StatusCancelled},
	StatusApproved:   {StatusInProgress, StatusResolved},
	StatusRejected:   {StatusPending, StatusCancelled},
	StatusInProgress: {StatusResolved, StatusEscalated, StatusCancelled},
	StatusEscalated:  {StatusInReview, StatusApproved, StatusRejected, StatusCancelled},
}

// TargetStatus returns the status an action moves a workflow to.
func TargetStatus(a Action) (Status, bool) {
	s, ok := actionTargets[a]
	return s, ok
}

// CanTransition reports whether the table allows moving from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedTargets returns the statuses reachable from s.
func AllowedTargets(s Status) []Status {
	return append([]Status(nil), transitions[s]...)
}

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := actionTargets[a]; !ok {
		return "", fmt.Errorf("unknown workflow action %q", s)
	}
	return a, nil
}

// NotificationEvent returns the notification event name fired after a successful
// transition with action a, for example "workflow_approved".
func NotificationEvent(a Action) string {
	if p, ok := pastTense[a]; ok {
		return "workflow_" + p
	}
	return "workflow_" + string(a)
}
