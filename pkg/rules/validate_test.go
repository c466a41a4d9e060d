package rules

import (
	"errors"
	"strings"
	"testing"

	"complyhq/sentinel/pkg/rules/condition"
)

func TestRule_Validate(t *testing.T) {
	risk := Risk{Level: RiskHigh, Score: 60}

	tests := []struct {
		name      string
		rule      Rule
		wantErr   bool
		errSubstr string
	}{
		{
			name: "valid SOD",
			rule: Rule{ID: "r1", Pattern: Pattern{Type: PatternSOD, ConflictingRoles: []string{"A", "B"}}, Risk: risk},
		},
		{
			name: "valid threshold",
			rule: Rule{ID: "r2", Pattern: Pattern{Type: PatternThreshold, Field: "amount", Operator: OpGTE, Value: 10, Aggregation: AggMax}, Risk: risk},
		},
		{
			name: "valid generic",
			rule: Rule{ID: "r3", Pattern: Pattern{Type: PatternGeneric, Condition: "value != null"}, Risk: risk},
		},
		{
			name:      "missing id",
			rule:      Rule{Pattern: Pattern{Type: PatternSOD, ConflictingRoles: []string{"A"}}, Risk: risk},
			wantErr:   true,
			errSubstr: "id is required",
		},
		{
			name:      "empty conflicting roles",
			rule:      Rule{ID: "r", Pattern: Pattern{Type: PatternSOD}, Risk: risk},
			wantErr:   true,
			errSubstr: "conflicting role",
		},
		{
			name:      "bad operator",
			rule:      Rule{ID: "r", Pattern: Pattern{Type: PatternThreshold, Field: "a", Operator: "BETWEEN"}, Risk: risk},
			wantErr:   true,
			errSubstr: "unknown operator",
		},
		{
			name:      "bad aggregation",
			rule:      Rule{ID: "r", Pattern: Pattern{Type: PatternThreshold, Field: "a", Operator: OpGT, Aggregation: "MEDIAN"}, Risk: risk},
			wantErr:   true,
			errSubstr: "unknown aggregation",
		},
		{
			name:      "unknown pattern",
			rule:      Rule{ID: "r", Pattern: Pattern{Type: "REGEX"}, Risk: risk},
			wantErr:   true,
			errSubstr: "unknown pattern type",
		},
		{
			name:      "bad risk",
			rule:      Rule{ID: "r", Pattern: Pattern{Type: PatternSOD, ConflictingRoles: []string{"A"}}, Risk: Risk{Level: "SEVERE", Score: 101}},
			wantErr:   true,
			errSubstr: "out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var ruleErr *RuleError
			if !errors.As(err, &ruleErr) {
				t.Fatalf("error type = %T, want *RuleError", err)
			}
			if !strings.Contains(err.Error(), tt.errSubstr) {
				t.Errorf("error %q does not contain %q", err, tt.errSubstr)
			}
		})
	}
}

func TestRule_ValidateUnparseableCondition(t *testing.T) {
	rule := Rule{ID: "g", Pattern: Pattern{Type: PatternGeneric, Condition: "a &&"}, Risk: Risk{Level: RiskLow}}

	err := rule.Validate()
	var syntaxErr *condition.SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("expected wrapped *condition.SyntaxError, got %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"DETECTED", StatusDetected, false},
		{"acknowledged", StatusAcknowledged, false},
		{" resolved ", StatusResolved, false},
		{"false_positive", StatusFalsePositive, false},
		{"closed", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStatus(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
