package config

import (
	"time"

	"complyhq/sentinel/pkg/workflow"
)

// Config is the root configuration structure for Sentinel.
// It contains the rule source, evaluator, violation repository, workflow engine,
// escalation scheduling, notification delivery and telemetry settings.
type Config struct {
	// Rules controls where rule definitions are loaded from.
	Rules RulesConfig `yaml:"rules"`

	// Evaluation contains evaluator tuning.
	Evaluation EvaluationConfig `yaml:"evaluation"`

	// Violations contains the violation repository configuration.
	Violations ViolationsConfig `yaml:"violations"`

	// Workflow contains the workflow engine and store configuration.
	Workflow WorkflowConfig `yaml:"workflow"`

	// Escalation contains the escalation sweep schedule, lock and rules.
	Escalation EscalationConfig `yaml:"escalation"`

	// Notifications controls how workflow events are delivered.
	Notifications NotificationsConfig `yaml:"notifications"`

	// Telemetry contains configuration for logging, metrics and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// RulesConfig configures the rule source.
type RulesConfig struct {
	// Path is a rule file or a directory of rule files.
	// Default: "./rules"
	Path string `yaml:"path"`

	// Strict rejects unknown fields in rule files.
	// Default: false
	Strict bool `yaml:"strict"`

	// Watch reloads rules when files under Path change.
	// Default: false
	Watch bool `yaml:"watch"`

	// WatchDebounce coalesces bursts of file events.
	// Default: 500ms
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// EvaluationConfig configures the rule evaluator.
type EvaluationConfig struct {
	// MaxParallelRules bounds how many rules are matched concurrently.
	// Default: 0, meaning the number of CPUs.
	MaxParallelRules int `yaml:"max_parallel_rules"`
}

// ViolationsConfig configures the violation repository.
type ViolationsConfig struct {
	// Backend selects the repository.
	// Options: "sqlite", "memory"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite configures the SQLite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig configures a SQLite database.
type SQLiteConfig struct {
	// Path is the database file.
	Path string `yaml:"path"`

	// MaxOpenConns limits open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns limits idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// DisableWAL turns off write-ahead logging.
	// Default: false
	DisableWAL bool `yaml:"disable_wal"`

	// BusyTimeout is how long a writer waits for a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// WorkflowConfig configures the workflow engine.
type WorkflowConfig struct {
	// Store selects and configures the workflow store.
	Store WorkflowStoreConfig `yaml:"store"`

	// MaxUpdateAttempts bounds retries after a concurrent modification.
	// Default: 3
	MaxUpdateAttempts int `yaml:"max_update_attempts"`

	// Chains declares approval chains in addition to the built-in ones. A chain
	// with a built-in id replaces it.
	Chains []workflow.ApprovalChain `yaml:"chains"`
}

// WorkflowStoreConfig configures the workflow store.
type WorkflowStoreConfig struct {
	// Backend selects the store.
	// Options: "sqlite", "postgres", "memory"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite configures the SQLite store. Only Path and BusyTimeout apply.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Postgres configures the PostgreSQL store.
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig configures a PostgreSQL connection.
type PostgresConfig struct {
	// DSN is a full connection string. When set, the discrete fields are ignored.
	DSN string `yaml:"dsn"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	// SSLMode is the libpq sslmode.
	// Default: "require"
	SSLMode string `yaml:"ssl_mode"`

	// MaxOpenConns limits open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// ConnMaxLifetime recycles connections.
	// Default: 30m
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// EscalationConfig configures the escalation sweep.
type EscalationConfig struct {
	// Schedule is a five-field cron expression.
	// Default: "*/15 * * * *"
	Schedule string `yaml:"schedule"`

	// RunOnStart performs a sweep as soon as the scheduler starts.
	// Default: false
	RunOnStart bool `yaml:"run_on_start"`

	// RunTimeout bounds a single sweep.
	// Default: 5m
	RunTimeout time.Duration `yaml:"run_timeout"`

	// Lock serialises sweeps across processes.
	Lock LockConfig `yaml:"lock"`

	// DisableDefaultRules drops the built-in critical and high priority rules.
	// Default: false
	DisableDefaultRules bool `yaml:"disable_default_rules"`

	// Rules are appended after the built-in rules.
	Rules []workflow.EscalationRuleSpec `yaml:"rules"`
}

// LockConfig configures the sweep lock.
type LockConfig struct {
	// Backend selects the lock.
	// Options: "local", "redis"
	// Default: "local"
	Backend string `yaml:"backend"`

	// Key names the lock.
	// Default: "escalation-sweep"
	Key string `yaml:"key"`

	// TTL bounds how long a crashed holder blocks others.
	// Default: 10m
	TTL time.Duration `yaml:"ttl"`

	// Redis configures the Redis backend.
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig configures a Redis connection.
type RedisConfig struct {
	// Addr is host:port.
	// Default: "localhost:6379"
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// Prefix is prepended to lock keys.
	// Default: "sentinel:lock:"
	Prefix string `yaml:"prefix"`
}

// NotificationsConfig configures event delivery.
type NotificationsConfig struct {
	// Backend selects the publisher.
	// Options: "log", "nats", "none"
	// Default: "log"
	Backend string `yaml:"backend"`

	// DisableDefaultTriggers drops the built-in notification triggers.
	// Default: false
	DisableDefaultTriggers bool `yaml:"disable_default_triggers"`

	// Triggers are appended after the built-in triggers.
	Triggers []workflow.NotificationTriggerSpec `yaml:"triggers"`

	// Async queues events and delivers them in the background.
	Async AsyncConfig `yaml:"async"`

	// NATS configures the JetStream publisher.
	NATS NATSConfig `yaml:"nats"`
}

// AsyncConfig configures background delivery.
type AsyncConfig struct {
	// Enabled wraps the publisher with a queue and worker.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Buffer is the queue size.
	// Default: 1000
	Buffer int `yaml:"buffer"`

	// EnqueueTimeout bounds how long a full queue blocks the engine.
	// Default: 1s
	EnqueueTimeout time.Duration `yaml:"enqueue_timeout"`

	// PublishTimeout bounds each delivery attempt.
	// Default: 5s
	PublishTimeout time.Duration `yaml:"publish_timeout"`

	// MaxAttempts is the number of delivery attempts per event.
	// Default: 3
	MaxAttempts int `yaml:"max_attempts"`

	// RetryBackoff is the first retry delay, doubled after each failure.
	// Default: 200ms
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// NATSConfig configures the JetStream publisher.
type NATSConfig struct {
	// URL of the NATS server.
	// Default: "nats://127.0.0.1:4222"
	URL string `yaml:"url"`

	// Stream is the JetStream stream name.
	// Default: "SENTINEL_WORKFLOW"
	Stream string `yaml:"stream"`

	// SubjectPrefix is prepended to every subject.
	// Default: "sentinel"
	SubjectPrefix string `yaml:"subject_prefix"`

	// MaxAge bounds stream retention.
	// Default: 168h
	MaxAge time.Duration `yaml:"max_age"`

	// ConnectTimeout bounds the initial connection.
	// Default: 5s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// DisableRedaction turns off PII redaction in log attributes.
	// Default: false
	DisableRedaction bool `yaml:"disable_redaction"`

	// RedactPatterns contains additional redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom PII redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served by `sentinel run`.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the address of the metrics and health server.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "sentinel"
	Namespace string `yaml:"namespace"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "sentinel"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the OTLP connection.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout is the export timeout.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
