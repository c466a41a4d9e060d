package rules

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// Config contains configuration for the Evaluator.
type Config struct {
	// MaxParallelRules bounds how many rule matchers run concurrently.
	// Default: runtime.NumCPU().
	MaxParallelRules int

	// Logger receives matcher diagnostics. Default: slog.Default().
	Logger *slog.Logger

	// Metrics receives per-rule evaluation observations. Optional.
	Metrics Metrics

	// Now returns the timestamp stamped on violations. Default: time.Now.
	Now func() time.Time
}

// DefaultConfig returns the default evaluator configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxParallelRules: runtime.NumCPU(),
	}
}

// Validate validates the evaluator configuration.
func (c *Config) Validate() error {
	if c.MaxParallelRules < 1 {
		return fmt.Errorf("%w: max parallel rules must be at least 1, got %d", ErrInvalidConfig, c.MaxParallelRules)
	}
	return nil
}

// Metrics is the observation hook used by the evaluator. The telemetry metrics
// collector implements it.
type Metrics interface {
	RecordRuleEvaluation(ruleID string, pattern string, matches int, duration time.Duration)
	RecordRuleError(ruleID string, reason string)
}
