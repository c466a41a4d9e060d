// Package rules evaluates declarative compliance rules against batches of tenant
// records and produces violations.
//
// # Rule Patterns
//
// Three pattern types are supported:
//
//   - SOD: flags identities holding conflicting roles. With requiresAll (the default)
//     the identity must hold every listed role, otherwise any one of them.
//   - THRESHOLD: compares a numeric field against a value, per record or after
//     reducing the batch with SUM, AVG, MAX, MIN or COUNT.
//   - GENERIC: evaluates a restricted boolean condition (see package condition)
//     against {value, record, ...contextFields}.
//
// # Evaluation
//
//	evaluator, err := rules.NewEvaluator(nil)
//	if err != nil {
//		return err
//	}
//	violations := evaluator.Evaluate(ctx, records, ruleSet)
//
// Rules are matched concurrently, bounded by Config.MaxParallelRules, but results are
// always returned in rule order and then match order. Violation ids come from a
// process-wide counter owned by the Evaluator. A matcher failure on one record is
// logged and the record skipped; it never aborts the batch.
package rules
