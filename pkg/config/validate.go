package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/robfig/cron/v3"

	"complyhq/sentinel/pkg/workflow"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "workflow.store.backend").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// HasField reports whether any error refers to field.
func (e ValidationError) HasField(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func sortFieldErrors(errs []FieldError) {
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateRules(&cfg.Rules, &cfg.Evaluation)...)
	errs = append(errs, validateViolations(&cfg.Violations)...)
	errs = append(errs, validateWorkflow(&cfg.Workflow)...)
	errs = append(errs, validateEscalation(&cfg.Escalation)...)
	errs = append(errs, validateNotifications(&cfg.Notifications)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateRules(rules *RulesConfig, eval *EvaluationConfig) []FieldError {
	var errs []FieldError
	if rules.Path == "" {
		errs = append(errs, FieldError{Field: "rules.path", Message: "rules path is required"})
	}
	if rules.WatchDebounce < 0 {
		errs = append(errs, FieldError{Field: "rules.watch_debounce", Message: "watch debounce must not be negative"})
	}
	if eval.MaxParallelRules < 0 {
		errs = append(errs, FieldError{Field: "evaluation.max_parallel_rules", Message: "max parallel rules must not be negative"})
	}
	return errs
}

func validateViolations(cfg *ViolationsConfig) []FieldError {
	var errs []FieldError
	switch cfg.Backend {
	case "memory":
	case "sqlite":
		errs = append(errs, validateSQLite("violations.sqlite", &cfg.SQLite)...)
	default:
		errs = append(errs, FieldError{
			Field:   "violations.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'sqlite' or 'memory'", cfg.Backend),
		})
	}
	return errs
}

func validateSQLite(prefix string, cfg *SQLiteConfig) []FieldError {
	var errs []FieldError
	if cfg.Path == "" {
		errs = append(errs, FieldError{Field: prefix + ".path", Message: "sqlite path is required"})
	}
	if cfg.MaxOpenConns < 0 {
		errs = append(errs, FieldError{Field: prefix + ".max_open_conns", Message: "max open connections must not be negative"})
	}
	if cfg.MaxIdleConns < 0 {
		errs = append(errs, FieldError{Field: prefix + ".max_idle_conns", Message: "max idle connections must not be negative"})
	}
	if cfg.MaxOpenConns > 0 && cfg.MaxIdleConns > cfg.MaxOpenConns {
		errs = append(errs, FieldError{Field: prefix + ".max_idle_conns", Message: "max idle connections cannot exceed max open connections"})
	}
	if cfg.BusyTimeout < 0 {
		errs = append(errs, FieldError{Field: prefix + ".busy_timeout", Message: "busy timeout must not be negative"})
	}
	return errs
}

func validateWorkflow(cfg *WorkflowConfig) []FieldError {
	var errs []FieldError

	switch cfg.Store.Backend {
	case "memory":
	case "sqlite":
		errs = append(errs, validateSQLite("workflow.store.sqlite", &cfg.Store.SQLite)...)
	case "postgres":
		pg := &cfg.Store.Postgres
		if pg.DSN == "" {
			if pg.Host == "" {
				errs = append(errs, FieldError{Field: "workflow.store.postgres.host", Message: "host is required when dsn is not set"})
			}
			if pg.Database == "" {
				errs = append(errs, FieldError{Field: "workflow.store.postgres.database", Message: "database is required when dsn is not set"})
			}
			if pg.Port <= 0 || pg.Port > 65535 {
				errs = append(errs, FieldError{Field: "workflow.store.postgres.port", Message: "port must be between 1 and 65535"})
			}
		}
		validModes := map[string]bool{"disable": true, "allow": true, "prefer": true, "require": true, "verify-ca": true, "verify-full": true}
		if !validModes[pg.SSLMode] {
			errs = append(errs, FieldError{Field: "workflow.store.postgres.ssl_mode", Message: fmt.Sprintf("invalid ssl mode %q", pg.SSLMode)})
		}
		if pg.MaxOpenConns < 0 {
			errs = append(errs, FieldError{Field: "workflow.store.postgres.max_open_conns", Message: "max open connections must not be negative"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "workflow.store.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'sqlite', 'postgres' or 'memory'", cfg.Store.Backend),
		})
	}

	if cfg.MaxUpdateAttempts < 1 {
		errs = append(errs, FieldError{Field: "workflow.max_update_attempts", Message: "max update attempts must be at least 1"})
	}

	seen := make(map[string]bool)
	for i, chain := range cfg.Chains {
		field := fmt.Sprintf("workflow.chains[%d]", i)
		if err := chain.Validate(); err != nil {
			errs = append(errs, FieldError{Field: field, Message: err.Error()})
			continue
		}
		if seen[chain.ID] {
			errs = append(errs, FieldError{Field: field + ".id", Message: fmt.Sprintf("duplicate chain id %q", chain.ID)})
		}
		seen[chain.ID] = true
	}
	return errs
}

func validateEscalation(cfg *EscalationConfig) []FieldError {
	var errs []FieldError

	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "escalation.schedule",
			Message: fmt.Sprintf("invalid cron schedule %q: %v", cfg.Schedule, err),
		})
	}
	if cfg.RunTimeout < 0 {
		errs = append(errs, FieldError{Field: "escalation.run_timeout", Message: "run timeout must not be negative"})
	}

	switch cfg.Lock.Backend {
	case "local":
	case "redis":
		if cfg.Lock.Redis.Addr == "" {
			errs = append(errs, FieldError{Field: "escalation.lock.redis.addr", Message: "redis address is required for the redis lock"})
		}
		if cfg.Lock.Redis.DB < 0 {
			errs = append(errs, FieldError{Field: "escalation.lock.redis.db", Message: "redis db must not be negative"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "escalation.lock.backend",
			Message: fmt.Sprintf("invalid lock backend %q: must be 'local' or 'redis'", cfg.Lock.Backend),
		})
	}
	if cfg.Lock.TTL <= 0 {
		errs = append(errs, FieldError{Field: "escalation.lock.ttl", Message: "lock ttl must be positive"})
	}

	// Compiling surfaces expression errors at load time.
	if _, err := workflow.CompileEscalationRules(cfg.Rules, nil); err != nil {
		errs = append(errs, FieldError{Field: "escalation.rules", Message: err.Error()})
	}
	return errs
}

func validateNotifications(cfg *NotificationsConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "log", "none":
	case "nats":
		if cfg.NATS.URL == "" {
			errs = append(errs, FieldError{Field: "notifications.nats.url", Message: "nats url is required"})
		}
		if cfg.NATS.Stream == "" {
			errs = append(errs, FieldError{Field: "notifications.nats.stream", Message: "stream name is required"})
		}
		if strings.ContainsAny(cfg.NATS.SubjectPrefix, " *>") {
			errs = append(errs, FieldError{Field: "notifications.nats.subject_prefix", Message: "subject prefix must not contain spaces or wildcards"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "notifications.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'log', 'nats' or 'none'", cfg.Backend),
		})
	}

	if cfg.Async.Enabled {
		if cfg.Async.Buffer < 1 {
			errs = append(errs, FieldError{Field: "notifications.async.buffer", Message: "buffer must be at least 1"})
		}
		if cfg.Async.MaxAttempts < 1 {
			errs = append(errs, FieldError{Field: "notifications.async.max_attempts", Message: "max attempts must be at least 1"})
		}
	}

	if _, err := workflow.CompileNotificationTriggers(cfg.Triggers, nil, nil); err != nil {
		errs = append(errs, FieldError{Field: "notifications.triggers", Message: err.Error()})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	// Validate logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	// Validate logging format
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	for i, p := range cfg.Logging.RedactPatterns {
		if _, err := regexp.Compile(p.Pattern); err != nil {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.logging.redact_patterns[%d].pattern", i),
				Message: fmt.Sprintf("invalid regular expression: %v", err),
			})
		}
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Path == "" || cfg.Metrics.Path[0] != '/' {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "metrics path must start with /",
			})
		}
		if cfg.Metrics.ListenAddress == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.listen_address",
				Message: "listen address is required when metrics are enabled",
			})
		}
	}

	// Validate tracing configuration
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
	if !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	return errs
}
