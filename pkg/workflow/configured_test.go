package workflow

import (
	"testing"
	"time"
)

func TestCompileEscalationRules(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	due := now.Add(-3 * time.Hour)

	rules, err := CompileEscalationRules([]EscalationRuleSpec{
		{ID: "medium-overdue", When: `priority == "medium" && overdueHours > 2`, Action: EscalateAction, EscalateTo: "director"},
		{ID: "ciso-step", When: `stepRole == "ciso" && ageHours >= 100`, Action: NotifyAction},
		{ID: "meta", When: `metadata.region == "eu"`, Action: AutoRejectAction},
	}, nil)
	if err != nil {
		t.Fatalf("CompileEscalationRules() error = %v", err)
	}

	wf := &Workflow{
		Priority:  PriorityMedium,
		CreatedAt: now.Add(-10 * time.Hour),
		Steps:     []Step{{AssignedRole: "manager", DueDate: &due}},
		Metadata:  map[string]any{"region": "eu"},
	}

	want := map[string]bool{"medium-overdue": true, "ciso-step": false, "meta": true}
	for _, r := range rules {
		if got := r.Condition(wf, now); got != want[r.ID] {
			t.Errorf("rule %s = %v, want %v", r.ID, got, want[r.ID])
		}
	}
	if rules[0].Name != "medium-overdue" {
		t.Errorf("name should default to id, got %q", rules[0].Name)
	}
}

func TestCompileEscalationRules_Errors(t *testing.T) {
	tests := []struct {
		name string
		spec EscalationRuleSpec
	}{
		{"missing id", EscalationRuleSpec{When: "true", Action: NotifyAction}},
		{"bad action", EscalationRuleSpec{ID: "x", When: "true", Action: "page"}},
		{"escalate without target", EscalationRuleSpec{ID: "x", When: "true", Action: EscalateAction}},
		{"empty when", EscalationRuleSpec{ID: "x", Action: NotifyAction}},
		{"syntax", EscalationRuleSpec{ID: "x", When: "priority ==", Action: NotifyAction}},
		{"not bool", EscalationRuleSpec{ID: "x", When: "ageHours + 1", Action: NotifyAction}},
		{"unknown variable", EscalationRuleSpec{ID: "x", When: "owner == 'bob'", Action: NotifyAction}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CompileEscalationRules([]EscalationRuleSpec{tt.spec}, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCompileNotificationTriggers(t *testing.T) {
	triggers, err := CompileNotificationTriggers([]NotificationTriggerSpec{
		{ID: "high-created", Event: NotifyCreated, When: `priority in ["critical", "high"]`, Recipients: []string{"security"}, Channels: []string{"slack"}},
		{ID: "always", Event: NotifyAssigned, Recipients: []string{RecipientAssignee}},
	}, nil, nil)
	if err != nil {
		t.Fatalf("CompileNotificationTriggers() error = %v", err)
	}

	if !triggers[0].Condition(&Workflow{Priority: PriorityHigh}) {
		t.Error("high priority should match")
	}
	if triggers[0].Condition(&Workflow{Priority: PriorityLow}) {
		t.Error("low priority should not match")
	}
	if triggers[1].Condition != nil {
		t.Error("trigger without when should have no condition")
	}
	if triggers[1].Template != NotifyAssigned {
		t.Errorf("template should default to event, got %q", triggers[1].Template)
	}

	if _, err := CompileNotificationTriggers([]NotificationTriggerSpec{{ID: "x", Event: NotifyCreated}}, nil, nil); err == nil {
		t.Error("trigger without recipients should be rejected")
	}
}
