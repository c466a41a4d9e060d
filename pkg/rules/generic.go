package rules

import (
	"context"
	"maps"

	"complyhq/sentinel/pkg/rules/condition"
)

// matchGeneric evaluates the rule condition against each record. The context exposes
// value (the rule field), record and the configured context fields, which win on
// name clashes. A condition that does not compile disables the rule for this batch;
// an evaluation error skips only the offending record.
func (e *Evaluator) matchGeneric(ctx context.Context, rule *Rule, records []Record) []match {
	p := &rule.Pattern

	expr, err := condition.Compile(p.Condition)
	if err != nil {
		e.logger.ErrorContext(ctx, "generic condition does not compile, rule skipped",
			"rule_id", rule.ID,
			"condition", p.Condition,
			"error", err,
		)
		e.recordError(rule.ID, "compile")
		return nil
	}

	var matches []match
	for i, rec := range records {
		var value any
		if p.Field != "" {
			value, _ = lookup(rec, p.Field)
		}

		vars := make(map[string]any, len(p.ContextFields)+2)
		vars["value"] = value
		vars["record"] = rec
		maps.Copy(vars, p.ContextFields)

		ok, err := expr.Eval(vars)
		if err != nil {
			e.logger.WarnContext(ctx, "generic condition failed, record skipped",
				"error", &MatchError{RuleID: rule.ID, RecordIndex: i, Cause: err},
			)
			e.recordError(rule.ID, "eval")
			continue
		}
		if !ok {
			continue
		}

		matches = append(matches, match{
			"field":  p.Field,
			"value":  value,
			"record": rec,
		})
	}
	return matches
}
