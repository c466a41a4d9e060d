package rules

import (
	"fmt"

	"complyhq/sentinel/pkg/rules/condition"
)

// Validate checks that the rule can be evaluated. It returns a *RuleError listing
// every problem found.
func (r *Rule) Validate() error {
	var problems []string
	var cause error

	if r.ID == "" {
		problems = append(problems, "id is required")
	}
	if !r.Risk.Level.Valid() {
		problems = append(problems, fmt.Sprintf("unknown risk level %q", r.Risk.Level))
	}
	if r.Risk.Score < 0 || r.Risk.Score > 100 {
		problems = append(problems, fmt.Sprintf("risk score %d out of range [0,100]", r.Risk.Score))
	}

	p := &r.Pattern
	switch p.Type {
	case PatternSOD:
		if len(p.ConflictingRoles) == 0 {
			problems = append(problems, "SOD pattern requires at least one conflicting role")
		}

	case PatternThreshold:
		if p.Field == "" {
			problems = append(problems, "THRESHOLD pattern requires a field")
		}
		if !validOperator(p.Operator) {
			problems = append(problems, fmt.Sprintf("unknown operator %q", p.Operator))
		}
		if p.Aggregation != "" && !validAggregation(p.Aggregation) {
			problems = append(problems, fmt.Sprintf("unknown aggregation %q", p.Aggregation))
		}

	case PatternGeneric:
		if p.Condition == "" {
			problems = append(problems, "GENERIC pattern requires a condition")
		} else if _, err := condition.Compile(p.Condition); err != nil {
			problems = append(problems, "condition does not parse")
			cause = err
		}

	default:
		problems = append(problems, fmt.Sprintf("unknown pattern type %q", p.Type))
	}

	if len(problems) > 0 {
		return &RuleError{RuleID: r.ID, Problems: problems, Cause: cause}
	}
	return nil
}

func validOperator(op Operator) bool {
	switch op {
	case OpGT, OpLT, OpEQ, OpNE, OpGTE, OpLTE:
		return true
	}
	return false
}

func validAggregation(agg Aggregation) bool {
	switch agg {
	case AggSum, AggAvg, AggMax, AggMin, AggCount:
		return true
	}
	return false
}
