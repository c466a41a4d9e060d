package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"complyhq/sentinel/pkg/workflow"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("default configuration should be valid: %v", err)
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := &Config{}
	cfg.Workflow.Store.Backend = "memory"
	ApplyDefaults(cfg)
	ApplyDefaults(cfg)

	if cfg.Workflow.Store.Backend != "memory" {
		t.Errorf("explicit backend overwritten: %q", cfg.Workflow.Store.Backend)
	}
	if cfg.Escalation.Schedule != DefaultEscalationSchedule {
		t.Errorf("expected default schedule, got %q", cfg.Escalation.Schedule)
	}
	if cfg.Notifications.Async.MaxAttempts != DefaultAsyncMaxAttempts {
		t.Errorf("expected default max attempts, got %d", cfg.Notifications.Async.MaxAttempts)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "unknown violations backend",
			mutate:    func(c *Config) { c.Violations.Backend = "bolt" },
			wantField: "violations.backend",
		},
		{
			name:      "idle above open connections",
			mutate:    func(c *Config) { c.Violations.SQLite.MaxIdleConns = 50 },
			wantField: "violations.sqlite.max_idle_conns",
		},
		{
			name: "postgres without host",
			mutate: func(c *Config) {
				c.Workflow.Store.Backend = "postgres"
				c.Workflow.Store.Postgres.Database = "sentinel"
			},
			wantField: "workflow.store.postgres.host",
		},
		{
			name: "postgres bad ssl mode",
			mutate: func(c *Config) {
				c.Workflow.Store.Backend = "postgres"
				c.Workflow.Store.Postgres.DSN = "postgres://db/sentinel"
				c.Workflow.Store.Postgres.SSLMode = "sometimes"
			},
			wantField: "workflow.store.postgres.ssl_mode",
		},
		{
			name:      "zero update attempts",
			mutate:    func(c *Config) { c.Workflow.MaxUpdateAttempts = -1 },
			wantField: "workflow.max_update_attempts",
		},
		{
			name: "invalid chain",
			mutate: func(c *Config) {
				c.Workflow.Chains = []workflow.ApprovalChain{{ID: "empty"}}
			},
			wantField: "workflow.chains[0]",
		},
		{
			name: "duplicate chain",
			mutate: func(c *Config) {
				chain := workflow.ApprovalChain{ID: "dup", Name: "Dup", Steps: []workflow.ChainStep{
					{Level: 1, ApproverRole: "manager", RequiredApprovals: 1, TimeoutHours: 24},
				}}
				c.Workflow.Chains = []workflow.ApprovalChain{chain, chain}
			},
			wantField: "workflow.chains[1].id",
		},
		{
			name:      "bad schedule",
			mutate:    func(c *Config) { c.Escalation.Schedule = "hourly" },
			wantField: "escalation.schedule",
		},
		{
			name:      "unknown lock backend",
			mutate:    func(c *Config) { c.Escalation.Lock.Backend = "etcd" },
			wantField: "escalation.lock.backend",
		},
		{
			name: "redis lock without address",
			mutate: func(c *Config) {
				c.Escalation.Lock.Backend = "redis"
				c.Escalation.Lock.Redis.Addr = ""
			},
			wantField: "escalation.lock.redis.addr",
		},
		{
			name: "escalation rule without target",
			mutate: func(c *Config) {
				c.Escalation.Rules = []workflow.EscalationRuleSpec{{ID: "r", When: "true", Action: workflow.EscalateAction}}
			},
			wantField: "escalation.rules",
		},
		{
			name: "trigger with non-boolean condition",
			mutate: func(c *Config) {
				c.Notifications.Triggers = []workflow.NotificationTriggerSpec{{
					ID: "t", Event: workflow.NotifyCreated, When: "ageHours + 1", Recipients: []string{"creator"},
				}}
			},
			wantField: "notifications.triggers",
		},
		{
			name:      "unknown notifications backend",
			mutate:    func(c *Config) { c.Notifications.Backend = "kafka" },
			wantField: "notifications.backend",
		},
		{
			name: "nats prefix wildcard",
			mutate: func(c *Config) {
				c.Notifications.Backend = "nats"
				c.Notifications.NATS.SubjectPrefix = "sentinel.>"
			},
			wantField: "notifications.nats.subject_prefix",
		},
		{
			name: "async zero buffer",
			mutate: func(c *Config) {
				c.Notifications.Async.Enabled = true
				c.Notifications.Async.Buffer = -1
			},
			wantField: "notifications.async.buffer",
		},
		{
			name:      "invalid log level",
			mutate:    func(c *Config) { c.Telemetry.Logging.Level = "verbose" },
			wantField: "telemetry.logging.level",
		},
		{
			name: "invalid redact pattern",
			mutate: func(c *Config) {
				c.Telemetry.Logging.RedactPatterns = []RedactPattern{{Name: "bad", Pattern: "(["}}
			},
			wantField: "telemetry.logging.redact_patterns[0].pattern",
		},
		{
			name: "metrics path without slash",
			mutate: func(c *Config) {
				c.Telemetry.Metrics.Enabled = true
				c.Telemetry.Metrics.Path = "metrics"
			},
			wantField: "telemetry.metrics.path",
		},
		{
			name:      "tracing without endpoint",
			mutate:    func(c *Config) { c.Telemetry.Tracing.Enabled = true },
			wantField: "telemetry.tracing.endpoint",
		},
		{
			name:      "sample ratio out of range",
			mutate:    func(c *Config) { c.Telemetry.Tracing.SampleRatio = 1.5 },
			wantField: "telemetry.tracing.sample_ratio",
		},
		{
			name:      "negative debounce",
			mutate:    func(c *Config) { c.Rules.WatchDebounce = -time.Second },
			wantField: "rules.watch_debounce",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !verr.HasField(tt.wantField) {
				t.Errorf("expected error for %s, got %v", tt.wantField, verr)
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if single.Error() != "configuration validation failed: a: bad" {
		t.Errorf("single error message = %q", single.Error())
	}

	multi := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	msg := multi.Error()
	if !strings.Contains(msg, "2 errors") || !strings.Contains(msg, "  - b: worse") {
		t.Errorf("multi error message = %q", msg)
	}
}
