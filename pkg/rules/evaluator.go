package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("complyhq/sentinel/rules")

// Evaluator runs rules against batches of records and produces violations.
//
// Matching is a pure function of the records and rules. The only state an
// Evaluator keeps is a rule cache and the violation counter used to generate ids;
// neither affects matching. An Evaluator is safe for concurrent use.
type Evaluator struct {
	config *Config
	logger *slog.Logger
	now    func() time.Time

	mu    sync.RWMutex
	cache map[string]*Rule

	counter atomic.Int64
}

// NewEvaluator creates an evaluator. A nil config uses DefaultConfig.
func NewEvaluator(cfg *Config) (*Evaluator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxParallelRules == 0 {
		cfg.MaxParallelRules = DefaultConfig().MaxParallelRules
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Evaluator{
		config: cfg,
		logger: logger.With("component", "rules.evaluator"),
		now:    now,
		cache:  make(map[string]*Rule),
	}, nil
}

// match is one matcher hit before it is turned into a Violation.
type match map[string]any

// EvaluateData accepts either a slice of records or a single record, as produced by
// decoding arbitrary JSON, and evaluates it with Evaluate.
func (e *Evaluator) EvaluateData(ctx context.Context, data any, rules []*Rule) []*Violation {
	return e.Evaluate(ctx, AsBatch(data), rules)
}

// Evaluate runs every rule against the full batch. Violations are returned in rule
// order and, within a rule, in match order. Per-record matcher failures are logged
// and skipped; they never fail the batch.
func (e *Evaluator) Evaluate(ctx context.Context, records []Record, rules []*Rule) []*Violation {
	ctx, span := tracer.Start(ctx, "rules.Evaluate")
	defer span.End()
	span.SetAttributes(
		attribute.Int("rules.count", len(rules)),
		attribute.Int("records.count", len(records)),
	)

	if len(records) == 0 || len(rules) == 0 {
		return []*Violation{}
	}

	results := make([][]match, len(rules))

	var g errgroup.Group
	g.SetLimit(e.config.MaxParallelRules)
	for i, rule := range rules {
		if rule == nil {
			continue
		}
		e.cacheRule(rule)

		g.Go(func() error {
			results[i] = e.runMatcher(ctx, rule, records)
			return nil
		})
	}
	_ = g.Wait()

	var violations []*Violation
	for i, matches := range results {
		for _, m := range matches {
			violations = append(violations, e.newViolation(rules[i], m))
		}
	}
	if violations == nil {
		violations = []*Violation{}
	}

	span.SetAttributes(attribute.Int("violations.count", len(violations)))
	e.logger.DebugContext(ctx, "evaluation complete",
		"rules", len(rules),
		"records", len(records),
		"violations", len(violations),
	)

	return violations
}

// runMatcher dispatches to the pattern matcher and isolates panics so a single
// malformed rule cannot take down the batch.
func (e *Evaluator) runMatcher(ctx context.Context, rule *Rule, records []Record) (matches []match) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "rule matcher panicked",
				"rule_id", rule.ID,
				"panic", fmt.Sprint(r),
			)
			e.recordError(rule.ID, "panic")
			matches = nil
		}
		if e.config.Metrics != nil {
			e.config.Metrics.RecordRuleEvaluation(rule.ID, string(rule.Pattern.Type), len(matches), time.Since(start))
		}
	}()

	switch rule.Pattern.Type {
	case PatternSOD:
		return matchSOD(rule, records)
	case PatternThreshold:
		return matchThreshold(rule, records)
	case PatternGeneric:
		return e.matchGeneric(ctx, rule, records)
	default:
		e.logger.WarnContext(ctx, "unknown pattern type, rule skipped",
			"rule_id", rule.ID,
			"pattern", rule.Pattern.Type,
		)
		e.recordError(rule.ID, "unknown_pattern")
		return nil
	}
}

func (e *Evaluator) recordError(ruleID, reason string) {
	if e.config.Metrics != nil {
		e.config.Metrics.RecordRuleError(ruleID, reason)
	}
}

func (e *Evaluator) newViolation(rule *Rule, m match) *Violation {
	n := e.counter.Add(1)
	now := e.now()

	return &Violation{
		ID:        fmt.Sprintf("violation_%d_%d", now.UnixMilli(), n),
		RuleID:    rule.ID,
		RuleName:  rule.Name,
		Rule:      rule,
		Data:      m,
		Risk:      rule.Risk,
		Timestamp: now,
		Status:    StatusDetected,
	}
}

func (e *Evaluator) cacheRule(rule *Rule) {
	e.mu.Lock()
	e.cache[rule.ID] = rule
	e.mu.Unlock()
}

// CachedRule returns the most recently evaluated rule with the given id.
func (e *Evaluator) CachedRule(id string) (*Rule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rule, ok := e.cache[id]
	return rule, ok
}

// Stats returns the number of cached rules and violations produced so far.
func (e *Evaluator) Stats() Stats {
	e.mu.RLock()
	cached := len(e.cache)
	e.mu.RUnlock()

	return Stats{
		CachedRules:        cached,
		ViolationsDetected: e.counter.Load(),
	}
}

// AsBatch normalizes decoded input into a record slice. A single object becomes a
// one-element batch; slices keep only their object elements.
func AsBatch(data any) []Record {
	switch v := data.(type) {
	case nil:
		return nil
	case []Record:
		return v
	case Record:
		return []Record{v}
	case []any:
		batch := make([]Record, 0, len(v))
		for _, item := range v {
			if rec, ok := item.(map[string]any); ok {
				batch = append(batch, rec)
			}
		}
		return batch
	default:
		return nil
	}
}
