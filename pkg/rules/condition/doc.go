// Package condition implements the restricted boolean expression language used by
// GENERIC rule patterns.
//
// Conditions are parsed into a small AST and interpreted; no caller-supplied code is
// ever executed. The language supports literals (numbers, quoted strings, true, false,
// null), dotted field references resolved against the evaluation context, list
// literals, comparisons (==, !=, <, <=, >, >=, in), negation and the short-circuit
// operators && and ||.
//
// Example:
//
//	expr, err := condition.Compile(`value > limit && record.department != "finance"`)
//	if err != nil {
//		return err
//	}
//	matched, err := expr.Eval(map[string]any{
//		"value":  12000,
//		"limit":  10000,
//		"record": record,
//	})
//
// The JavaScript-style spellings === and !== are accepted as aliases of == and !=.
package condition
