package workflow

import (
	"fmt"
	"log/slog"
	"time"
)

// Config contains configuration for the Engine.
type Config struct {
	// Publisher receives lifecycle and notification events. Default: discard.
	Publisher Publisher

	// Chains resolves approval chain ids. Default: NewChainRegistry().
	Chains *ChainRegistry

	// EscalationRules consulted by CheckEscalations, in order.
	// A nil slice installs DefaultEscalationRules; an empty slice installs none.
	EscalationRules []EscalationRule

	// NotificationTriggers consulted on every lifecycle event.
	// A nil slice installs DefaultNotificationTriggers; an empty slice installs none.
	NotificationTriggers []NotificationTrigger

	// MaxUpdateAttempts bounds re-read and re-apply cycles after a version conflict.
	// Default: 3
	MaxUpdateAttempts int

	// Metrics receives engine observations. Optional.
	Metrics Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Now is the engine clock. Default: time.Now.
	Now func() time.Time

	// NewID generates workflow, step, transition and event ids. Default: uuid.NewString.
	NewID func() string
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxUpdateAttempts: 3,
	}
}

// Validate validates the engine configuration.
func (c *Config) Validate() error {
	if c.MaxUpdateAttempts < 1 {
		return fmt.Errorf("max update attempts must be at least 1, got %d", c.MaxUpdateAttempts)
	}
	for i, r := range c.EscalationRules {
		if r.Condition == nil {
			return fmt.Errorf("escalation rule %d (%s): condition is required", i, r.ID)
		}
		if !r.Action.Valid() {
			return fmt.Errorf("escalation rule %d (%s): unknown action %q", i, r.ID, r.Action)
		}
	}
	for i, t := range c.NotificationTriggers {
		if t.Event == "" {
			return fmt.Errorf("notification trigger %d (%s): event is required", i, t.ID)
		}
	}
	return nil
}

// Metrics is the observation hook used by the engine. The telemetry metrics
// collector implements it.
type Metrics interface {
	RecordWorkflowCreated(workflowType, priority string)
	RecordTransition(action, from, to string, duration time.Duration)
	RecordTransitionRejected(action, from string)
	RecordVersionConflict(operation string)
	RecordEscalationSweep(result SweepResult, duration time.Duration)
	RecordNotification(event string)
	RecordPublishFailure(eventType string)
}

type nopMetrics struct{}

func (nopMetrics) RecordWorkflowCreated(string, string)                   {}
func (nopMetrics) RecordTransition(string, string, string, time.Duration) {}
func (nopMetrics) RecordTransitionRejected(string, string)                {}
func (nopMetrics) RecordVersionConflict(string)                           {}
func (nopMetrics) RecordEscalationSweep(SweepResult, time.Duration)       {}
func (nopMetrics) RecordNotification(string)                              {}
func (nopMetrics) RecordPublishFailure(string)                            {}
