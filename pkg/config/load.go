package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "SENTINEL_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	cfg, err := readConfig(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention SENTINEL_SECTION_FIELD (e.g., SENTINEL_WORKFLOW_STORE_BACKEND).
// Environment variables always take precedence over file-based configuration.
//
// An empty path skips the file and starts from the defaults.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		cfg, err = readConfig(path)
		if err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML configuration and applies defaults without validating.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

func readConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

// envOverrides binds SENTINEL_* variables to configuration fields. Keys omit the
// prefix.
func envOverrides(cfg *Config) map[string]any {
	return map[string]any{
		"RULES_PATH":           &cfg.Rules.Path,
		"RULES_STRICT":         &cfg.Rules.Strict,
		"RULES_WATCH":          &cfg.Rules.Watch,
		"RULES_WATCH_DEBOUNCE": &cfg.Rules.WatchDebounce,

		"EVALUATION_MAX_PARALLEL_RULES": &cfg.Evaluation.MaxParallelRules,

		"VIOLATIONS_BACKEND":     &cfg.Violations.Backend,
		"VIOLATIONS_SQLITE_PATH": &cfg.Violations.SQLite.Path,

		"WORKFLOW_STORE_BACKEND":       &cfg.Workflow.Store.Backend,
		"WORKFLOW_SQLITE_PATH":         &cfg.Workflow.Store.SQLite.Path,
		"WORKFLOW_POSTGRES_DSN":        &cfg.Workflow.Store.Postgres.DSN,
		"WORKFLOW_POSTGRES_HOST":       &cfg.Workflow.Store.Postgres.Host,
		"WORKFLOW_POSTGRES_PORT":       &cfg.Workflow.Store.Postgres.Port,
		"WORKFLOW_POSTGRES_DATABASE":   &cfg.Workflow.Store.Postgres.Database,
		"WORKFLOW_POSTGRES_USER":       &cfg.Workflow.Store.Postgres.User,
		"WORKFLOW_POSTGRES_PASSWORD":   &cfg.Workflow.Store.Postgres.Password,
		"WORKFLOW_POSTGRES_SSL_MODE":   &cfg.Workflow.Store.Postgres.SSLMode,
		"WORKFLOW_MAX_UPDATE_ATTEMPTS": &cfg.Workflow.MaxUpdateAttempts,

		"ESCALATION_SCHEDULE":       &cfg.Escalation.Schedule,
		"ESCALATION_RUN_ON_START":   &cfg.Escalation.RunOnStart,
		"ESCALATION_RUN_TIMEOUT":    &cfg.Escalation.RunTimeout,
		"ESCALATION_LOCK_BACKEND":   &cfg.Escalation.Lock.Backend,
		"ESCALATION_LOCK_TTL":       &cfg.Escalation.Lock.TTL,
		"ESCALATION_REDIS_ADDR":     &cfg.Escalation.Lock.Redis.Addr,
		"ESCALATION_REDIS_PASSWORD": &cfg.Escalation.Lock.Redis.Password,
		"ESCALATION_REDIS_DB":       &cfg.Escalation.Lock.Redis.DB,

		"NOTIFICATIONS_BACKEND":             &cfg.Notifications.Backend,
		"NOTIFICATIONS_ASYNC_ENABLED":       &cfg.Notifications.Async.Enabled,
		"NOTIFICATIONS_ASYNC_BUFFER":        &cfg.Notifications.Async.Buffer,
		"NOTIFICATIONS_NATS_URL":            &cfg.Notifications.NATS.URL,
		"NOTIFICATIONS_NATS_STREAM":         &cfg.Notifications.NATS.Stream,
		"NOTIFICATIONS_NATS_SUBJECT_PREFIX": &cfg.Notifications.NATS.SubjectPrefix,

		"TELEMETRY_LOGGING_LEVEL":          &cfg.Telemetry.Logging.Level,
		"TELEMETRY_LOGGING_FORMAT":         &cfg.Telemetry.Logging.Format,
		"TELEMETRY_METRICS_ENABLED":        &cfg.Telemetry.Metrics.Enabled,
		"TELEMETRY_METRICS_LISTEN_ADDRESS": &cfg.Telemetry.Metrics.ListenAddress,
		"TELEMETRY_METRICS_PATH":           &cfg.Telemetry.Metrics.Path,
		"TELEMETRY_TRACING_ENABLED":        &cfg.Telemetry.Tracing.Enabled,
		"TELEMETRY_TRACING_ENDPOINT":       &cfg.Telemetry.Tracing.Endpoint,
		"TELEMETRY_TRACING_SAMPLE_RATIO":   &cfg.Telemetry.Tracing.SampleRatio,
		"TELEMETRY_TRACING_INSECURE":       &cfg.Telemetry.Tracing.Insecure,
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// A variable that cannot be parsed for its field is reported as a FieldError.
func applyEnvOverrides(cfg *Config, lookup lookupFunc) error {
	var errs []FieldError
	for key, target := range envOverrides(cfg) {
		val, ok := lookup(EnvPrefix + key)
		if !ok || val == "" {
			continue
		}
		if err := setField(target, val); err != nil {
			errs = append(errs, FieldError{
				Field:   EnvPrefix + key,
				Message: err.Error(),
			})
		}
	}
	if len(errs) > 0 {
		sortFieldErrors(errs)
		return ValidationError{Errors: errs}
	}
	return nil
}

func setField(target any, val string) error {
	switch p := target.(type) {
	case *string:
		*p = val
	case *bool:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", val)
		}
		*p = b
	case *int:
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid integer %q", val)
		}
		*p = i
	case *float64:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", val)
		}
		*p = f
	case *time.Duration:
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q", val)
		}
		*p = d
	default:
		return fmt.Errorf("unsupported field type %T", target)
	}
	return nil
}

// ConnString returns DSN when set, otherwise a postgres URL built from the
// discrete fields.
func (c PostgresConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.User != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.User, c.Password)
		} else {
			u.User = url.User(c.User)
		}
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}
