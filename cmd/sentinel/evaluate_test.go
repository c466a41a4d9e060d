package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"complyhq/sentinel/pkg/cli"
	"complyhq/sentinel/pkg/config"
	"complyhq/sentinel/pkg/rules"
	"complyhq/sentinel/pkg/telemetry/tracing"
	"complyhq/sentinel/pkg/workflow"
)

func TestPriorityForRisk(t *testing.T) {
	tests := []struct {
		level rules.RiskLevel
		want  workflow.Priority
		chain string
	}{
		{rules.RiskCritical, workflow.PriorityCritical, workflow.ChainCritical3Level},
		{rules.RiskHigh, workflow.PriorityHigh, workflow.ChainHigh2Level},
		{rules.RiskMedium, workflow.PriorityMedium, workflow.ChainStandard1Level},
		{rules.RiskLow, workflow.PriorityLow, workflow.ChainStandard1Level},
		{"", workflow.PriorityMedium, workflow.ChainStandard1Level},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			if got := priorityForRisk(tt.level); got != tt.want {
				t.Errorf("priorityForRisk(%q) = %q, want %q", tt.level, got, tt.want)
			}
			in := newWorkflowInput(&rules.Violation{ID: "v1", TenantID: "acme", Risk: rules.Risk{Level: tt.level}}, "ci")
			if in.ApprovalChainID != tt.chain {
				t.Errorf("ApprovalChainID = %q, want %q", in.ApprovalChainID, tt.chain)
			}
			if in.TenantID != "acme" || in.CreatedBy != "ci" || in.Type != workflow.TypeRemediation {
				t.Errorf("unexpected input %+v", in)
			}
		})
	}
}

func TestLoadRecords(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		return path
	}

	tests := []struct {
		name    string
		path    string
		stdin   string
		want    int
		wantErr bool
	}{
		{
			name: "json array",
			path: write("batch.json", `[{"userId":"u1","roles":["A","B"]},{"userId":"u2"}]`),
			want: 2,
		},
		{
			name: "json object",
			path: write("single.json", `{"userId":"u1"}`),
			want: 1,
		},
		{
			name: "yaml array",
			path: write("batch.yaml", "- userId: u1\n  roles: [A, B]\n- userId: u2\n- userId: u3\n"),
			want: 3,
		},
		{
			name:  "stdin",
			path:  "-",
			stdin: `[{"userId":"u1"}]`,
			want:  1,
		},
		{
			name:    "scalar",
			path:    write("scalar.json", `42`),
			wantErr: true,
		},
		{
			name:    "malformed",
			path:    write("broken.json", `[{"userId":`),
			wantErr: true,
		},
		{
			name:    "missing",
			path:    filepath.Join(dir, "missing.json"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadRecords(tt.path, strings.NewReader(tt.stdin))
			if (err != nil) != tt.wantErr {
				t.Fatalf("loadRecords() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(got) != tt.want {
				t.Errorf("loadRecords() returned %d records, want %d", len(got), tt.want)
			}
		})
	}
}

func sodRule() *rules.Rule {
	return &rules.Rule{
		ID:   "sod-ap",
		Name: "AP clerk and vendor master",
		Pattern: rules.Pattern{
			Type:             rules.PatternSOD,
			ConflictingRoles: []string{"AP_CLERK", "VENDOR_MASTER"},
		},
		Risk: rules.Risk{Level: rules.RiskCritical, Score: 95},
	}
}

func newTestEvaluation(t *testing.T, comps *components, save, workflows bool) *evaluation {
	t.Helper()
	evaluator, err := rules.NewEvaluator(&rules.Config{MaxParallelRules: 2, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}
	tracer, err := tracing.New(&config.TracingConfig{}, "test")
	if err != nil {
		t.Fatalf("tracing.New() error = %v", err)
	}
	return &evaluation{
		comps:     comps,
		evaluator: evaluator,
		tracer:    tracer,
		source:    "test",
		tenant:    "acme",
		actor:     "ci",
		save:      save,
		workflows: workflows,
		progress:  cli.NopProgress{},
		logger:    testLogger(),
	}
}

var testRecords = []rules.Record{
	{"userId": "u1", "roles": []any{"AP_CLERK", "VENDOR_MASTER"}},
	{"userId": "u2", "roles": []any{"AP_CLERK"}},
	{"userId": "u3", "roles": []any{"VENDOR_MASTER", "AP_CLERK", "VIEWER"}},
}

func TestEvaluation_ReportOnly(t *testing.T) {
	comps := newComponents(memoryConfig(), testLogger(), nil)
	defer comps.Close()

	report, err := newTestEvaluation(t, comps, false, false).evaluate(context.Background(), testRecords, []*rules.Rule{sodRule()})
	if err != nil {
		t.Fatalf("evaluate() error = %v", err)
	}
	if report.Records != 3 || report.Rules != 1 {
		t.Errorf("report counts = %d records, %d rules", report.Records, report.Rules)
	}
	if len(report.Violations) != 2 {
		t.Fatalf("got %d violations, want 2", len(report.Violations))
	}
	for _, v := range report.Violations {
		if v.TenantID != "acme" {
			t.Errorf("violation %s TenantID = %q, want acme", v.ID, v.TenantID)
		}
	}
	if comps.violations != nil {
		t.Error("report-only evaluation should not open the violation store")
	}
}

func TestEvaluation_SaveAndCreateWorkflows(t *testing.T) {
	comps := newComponents(memoryConfig(), testLogger(), nil)
	defer comps.Close()
	ctx := context.Background()

	report, err := newTestEvaluation(t, comps, true, true).evaluate(ctx, testRecords, []*rules.Rule{sodRule()})
	if err != nil {
		t.Fatalf("evaluate() error = %v", err)
	}
	if len(report.Workflows) != 2 {
		t.Fatalf("got %d workflows, want 2", len(report.Workflows))
	}

	for _, v := range report.Violations {
		saved, err := comps.violations.Get(ctx, v.ID)
		if err != nil {
			t.Errorf("violation %s not saved: %v", v.ID, err)
			continue
		}
		if saved.Status != rules.StatusDetected {
			t.Errorf("saved status = %q, want %q", saved.Status, rules.StatusDetected)
		}

		wfs, err := comps.engine.GetWorkflowsByViolation(ctx, v.ID)
		if err != nil || len(wfs) != 1 {
			t.Fatalf("GetWorkflowsByViolation(%s) = %v, %v", v.ID, wfs, err)
		}
		wf := wfs[0]
		if wf.ID != report.Workflows[v.ID] {
			t.Errorf("workflow id = %q, report says %q", wf.ID, report.Workflows[v.ID])
		}
		if wf.Priority != workflow.PriorityCritical || wf.ApprovalChainID != workflow.ChainCritical3Level {
			t.Errorf("workflow priority/chain = %q/%q", wf.Priority, wf.ApprovalChainID)
		}
		if wf.TenantID != "acme" || wf.CreatedBy != "ci" {
			t.Errorf("workflow tenant/creator = %q/%q", wf.TenantID, wf.CreatedBy)
		}
	}
}

func TestEvaluationReport_Output(t *testing.T) {
	detected := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	report := &evaluationReport{
		Source:  "batch.json",
		Tenant:  "acme",
		Records: 1,
		Rules:   1,
		Violations: []*rules.Violation{{
			ID:        "violation_1_1",
			TenantID:  "acme",
			RuleID:    "sod-ap",
			Risk:      rules.Risk{Level: rules.RiskHigh, Score: 80},
			Status:    rules.StatusDetected,
			Timestamp: detected,
		}},
		Workflows: map[string]string{"violation_1_1": "wf-1"},
	}

	table, ok := report.output(cli.FormatText).(cli.Tabular)
	if !ok {
		t.Fatal("text output should be tabular")
	}
	rows := table.Rows()
	want := []string{"violation_1_1", "acme", "sod-ap", "HIGH", "80", "DETECTED", "2026-03-02T10:30:00Z", "wf-1"}
	if len(rows) != 1 || strings.Join(rows[0], ",") != strings.Join(want, ",") {
		t.Errorf("Rows() = %v, want [%v]", rows, want)
	}
	if len(table.Header()) != len(want) {
		t.Errorf("header has %d columns, rows have %d", len(table.Header()), len(want))
	}

	var buf bytes.Buffer
	if err := cli.NewFormatter(cli.FormatJSON).FormatTo(&buf, report.output(cli.FormatJSON)); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if decoded["tenant"] != "acme" {
		t.Errorf("tenant = %v, want acme", decoded["tenant"])
	}
}
