package workflow

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// EscalationRuleSpec declares an escalation rule in configuration. When is an expr
// boolean expression over the variables documented on ExprEnv.
type EscalationRuleSpec struct {
	ID         string           `yaml:"id" json:"id"`
	Name       string           `yaml:"name" json:"name"`
	When       string           `yaml:"when" json:"when"`
	Action     EscalationAction `yaml:"action" json:"action"`
	EscalateTo string           `yaml:"escalate_to" json:"escalateTo"`
}

// NotificationTriggerSpec declares a notification trigger in configuration. An
// empty When always fires.
type NotificationTriggerSpec struct {
	ID         string   `yaml:"id" json:"id"`
	Event      string   `yaml:"event" json:"event"`
	When       string   `yaml:"when" json:"when"`
	Recipients []string `yaml:"recipients" json:"recipients"`
	Channels   []string `yaml:"channels" json:"channels"`
	Template   string   `yaml:"template" json:"template"`
}

// ExprEnv builds the variables visible to configured conditions:
//
//	id, tenantId, violationId, type, status, priority, createdBy  string
//	ageHours      hours since creation
//	overdueHours  hours past the current step's due date, 0 if not overdue
//	stepLevel, stepIndex, stepCount, requiredApprovers, currentApprovers  int
//	stepRole, assignedTo  string
//	escalated     whether the current step was already escalated
//	metadata      map[string]any
func ExprEnv(wf *Workflow, now time.Time) map[string]any {
	env := map[string]any{
		"id":                wf.ID,
		"tenantId":          wf.TenantID,
		"violationId":       wf.ViolationID,
		"type":              string(wf.Type),
		"status":            string(wf.Status),
		"priority":          string(wf.Priority),
		"createdBy":         wf.CreatedBy,
		"ageHours":          now.Sub(wf.CreatedAt).Hours(),
		"overdueHours":      0.0,
		"stepLevel":         0,
		"stepIndex":         wf.CurrentStepIndex,
		"stepCount":         len(wf.Steps),
		"stepRole":          "",
		"assignedTo":        "",
		"requiredApprovers": 0,
		"currentApprovers":  0,
		"escalated":         false,
		"metadata":          wf.Metadata,
	}
	if env["metadata"] == nil {
		env["metadata"] = map[string]any{}
	}
	if step := wf.CurrentStep(); step != nil {
		env["stepLevel"] = step.Level
		env["stepRole"] = step.AssignedRole
		env["assignedTo"] = step.AssignedTo
		env["requiredApprovers"] = step.RequiredApprovers
		env["currentApprovers"] = step.CurrentApprovers
		env["escalated"] = step.EscalatedAt != nil
		if step.Overdue(now) {
			env["overdueHours"] = now.Sub(*step.DueDate).Hours()
		}
	}
	return env
}

func compileCondition(src string) (*vm.Program, error) {
	return expr.Compile(src, expr.Env(ExprEnv(&Workflow{}, time.Time{})), expr.AsBool())
}

func runCondition(program *vm.Program, env map[string]any, logger *slog.Logger, id string) bool {
	out, err := expr.Run(program, env)
	if err != nil {
		logger.Warn("condition evaluation failed", "id", id, "error", err)
		return false
	}
	b, ok := out.(bool)
	return ok && b
}

// CompileEscalationRules turns configured specs into escalation rules. Every
// expression is compiled up front so configuration errors surface at load time.
func CompileEscalationRules(specs []EscalationRuleSpec, logger *slog.Logger) ([]EscalationRule, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "workflow.escalation")

	out := make([]EscalationRule, 0, len(specs))
	for i, spec := range specs {
		if spec.ID == "" {
			return nil, fmt.Errorf("escalation rule %d: id is required", i)
		}
		if !spec.Action.Valid() {
			return nil, fmt.Errorf("escalation rule %s: unknown action %q", spec.ID, spec.Action)
		}
		if spec.Action == EscalateAction && spec.EscalateTo == "" {
			return nil, fmt.Errorf("escalation rule %s: escalateTo is required for action escalate", spec.ID)
		}
		if spec.When == "" {
			return nil, fmt.Errorf("escalation rule %s: when is required", spec.ID)
		}

		program, err := compileCondition(spec.When)
		if err != nil {
			return nil, fmt.Errorf("escalation rule %s: compiling when: %w", spec.ID, err)
		}

		id := spec.ID
		name := spec.Name
		if name == "" {
			name = id
		}
		out = append(out, EscalationRule{
			ID:   id,
			Name: name,
			Condition: func(wf *Workflow, now time.Time) bool {
				return runCondition(program, ExprEnv(wf, now), logger, id)
			},
			Action:     spec.Action,
			EscalateTo: spec.EscalateTo,
		})
	}
	return out, nil
}

// CompileNotificationTriggers turns configured specs into notification triggers.
// Trigger conditions are evaluated at the time the event fires.
func CompileNotificationTriggers(specs []NotificationTriggerSpec, now func() time.Time, logger *slog.Logger) ([]NotificationTrigger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	logger = logger.With("component", "workflow.notifications")

	out := make([]NotificationTrigger, 0, len(specs))
	for i, spec := range specs {
		if spec.ID == "" {
			return nil, fmt.Errorf("notification trigger %d: id is required", i)
		}
		if spec.Event == "" {
			return nil, fmt.Errorf("notification trigger %s: event is required", spec.ID)
		}
		if len(spec.Recipients) == 0 {
			return nil, fmt.Errorf("notification trigger %s: at least one recipient is required", spec.ID)
		}

		t := NotificationTrigger{
			ID:         spec.ID,
			Event:      spec.Event,
			Recipients: append([]string(nil), spec.Recipients...),
			Channels:   append([]string(nil), spec.Channels...),
			Template:   spec.Template,
		}
		if t.Template == "" {
			t.Template = spec.Event
		}

		if spec.When != "" {
			program, err := compileCondition(spec.When)
			if err != nil {
				return nil, fmt.Errorf("notification trigger %s: compiling when: %w", spec.ID, err)
			}
			id := spec.ID
			t.Condition = func(wf *Workflow) bool {
				return runCondition(program, ExprEnv(wf, now()), logger, id)
			}
		}
		out = append(out, t)
	}
	return out, nil
}
