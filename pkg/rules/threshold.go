package rules

import (
	"math"
	"strings"

	"complyhq/sentinel/pkg/rules/condition"
)

// matchThreshold compares a numeric field against the rule value, per record or,
// when an aggregation is set, once against the reduced value of the whole batch.
func matchThreshold(rule *Rule, records []Record) []match {
	p := &rule.Pattern
	if p.Aggregation != "" {
		return matchAggregate(rule, records)
	}

	var matches []match
	for _, rec := range records {
		raw, ok := lookup(rec, p.Field)
		if !ok {
			continue
		}
		value, ok := condition.ToNumber(raw)
		if !ok {
			continue
		}
		if !compareThreshold(p.Operator, value, p.Value) {
			continue
		}
		matches = append(matches, match{
			"field":     p.Field,
			"value":     value,
			"operator":  string(p.Operator),
			"threshold": p.Value,
			"record":    rec,
		})
	}
	return matches
}

func matchAggregate(rule *Rule, records []Record) []match {
	p := &rule.Pattern
	if len(records) == 0 {
		return nil
	}

	values := make([]float64, 0, len(records))
	for _, rec := range records {
		raw, ok := lookup(rec, p.Field)
		if !ok {
			continue
		}
		if v, ok := condition.ToNumber(raw); ok {
			values = append(values, v)
		}
	}
	agg, ok := aggregate(p.Aggregation, values)
	if !ok || !compareThreshold(p.Operator, agg, p.Value) {
		return nil
	}

	return []match{{
		"field":       p.Field,
		"aggregation": string(p.Aggregation),
		"value":       agg,
		"operator":    string(p.Operator),
		"threshold":   p.Value,
		"recordCount": len(values),
	}}
}

// aggregate reduces values. SUM and COUNT of no values are 0; AVG, MAX and MIN
// are undefined and report false.
func aggregate(agg Aggregation, values []float64) (float64, bool) {
	if len(values) == 0 {
		switch agg {
		case AggSum, AggCount:
			return 0, true
		default:
			return 0, false
		}
	}
	switch agg {
	case AggSum, AggAvg:
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		if agg == AggAvg {
			return sum / float64(len(values)), true
		}
		return sum, true
	case AggMax:
		out := math.Inf(-1)
		for _, v := range values {
			out = math.Max(out, v)
		}
		return out, true
	case AggMin:
		out := math.Inf(1)
		for _, v := range values {
			out = math.Min(out, v)
		}
		return out, true
	case AggCount:
		return float64(len(values)), true
	default:
		return 0, false
	}
}

func compareThreshold(op Operator, actual, expected float64) bool {
	switch op {
	case OpGT:
		return actual > expected
	case OpLT:
		return actual < expected
	case OpEQ:
		return actual == expected
	case OpNE:
		return actual != expected
	case OpGTE:
		return actual >= expected
	case OpLTE:
		return actual <= expected
	default:
		return false
	}
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}
