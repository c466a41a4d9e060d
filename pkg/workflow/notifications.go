package workflow

// Notification event names fired on lifecycle changes.
const (
	NotifyCreated   = "workflow_created"
	NotifyAssigned  = "workflow_assigned"
	NotifyApproved  = "workflow_approved"
	NotifyEscalated = "workflow_escalated"

	// NotifyStepApproved fires for an approval that does not finish the chain.
	NotifyStepApproved = "workflow_step_approved"
)

// Recipient placeholders resolved against the workflow when a trigger fires.
const (
	RecipientAssignee = "assignee"
	RecipientCreator  = "creator"
)

// NotificationTrigger sends a notification when Event fires and Condition holds.
// A nil Condition always holds.
type NotificationTrigger struct {
	ID         string
	Event      string
	Condition  func(wf *Workflow) bool
	Recipients []string
	Channels   []string
	Template   string
}

// DefaultNotificationTriggers returns the triggers installed when none are configured.
func DefaultNotificationTriggers() []NotificationTrigger {
	return []NotificationTrigger{
		{
			ID:         "created",
			Event:      NotifyCreated,
			Recipients: []string{RecipientAssignee},
			Channels:   []string{"email", "in_app"},
			Template:   "workflow_created",
		},
		{
			ID:         "approved",
			Event:      NotifyApproved,
			Recipients: []string{RecipientCreator},
			Channels:   []string{"email"},
			Template:   "workflow_approved",
		},
		{
			ID:    "escalated-critical",
			Event: NotifyEscalated,
			Condition: func(wf *Workflow) bool {
				return wf.Priority == PriorityCritical
			},
			Recipients: []string{"director", "ciso", RecipientCreator},
			Channels:   []string{"email", "sms", "in_app"},
			Template:   "workflow_escalated",
		},
	}
}

// resolveRecipients expands placeholders. The assignee placeholder falls back to the
// current step's role and is dropped when the workflow has no active step.
func resolveRecipients(recipients []string, wf *Workflow) []string {
	out := make([]string, 0, len(recipients))
	seen := make(map[string]bool, len(recipients))
	add := func(r string) {
		if r != "" && !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	for _, r := range recipients {
		switch r {
		case RecipientAssignee:
			if step := wf.CurrentStep(); step != nil {
				if step.AssignedTo != "" {
					add(step.AssignedTo)
				} else {
					add(step.AssignedRole)
				}
			}
		case RecipientCreator:
			add(wf.CreatedBy)
		default:
			add(r)
		}
	}
	return out
}
