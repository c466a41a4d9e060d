package config

import "time"

// Default values for configuration fields.
const (
	// Rules defaults
	DefaultRulesPath     = "./rules"
	DefaultWatchDebounce = 500 * time.Millisecond

	// Violations defaults
	DefaultViolationsBackend    = "sqlite"
	DefaultViolationsSQLitePath = "data/violations.db"
	DefaultSQLiteMaxOpenConns   = 10
	DefaultSQLiteMaxIdleConns   = 5
	DefaultSQLiteBusyTimeout    = 5 * time.Second

	// Workflow defaults
	DefaultWorkflowBackend         = "sqlite"
	DefaultWorkflowSQLitePath      = "data/workflows.db"
	DefaultMaxUpdateAttempts       = 3
	DefaultPostgresPort            = 5432
	DefaultPostgresSSLMode         = "require"
	DefaultPostgresMaxOpenConns    = 10
	DefaultPostgresConnMaxLifetime = 30 * time.Minute

	// Escalation defaults
	DefaultEscalationSchedule   = "*/15 * * * *"
	DefaultEscalationRunTimeout = 5 * time.Minute
	DefaultLockBackend          = "local"
	DefaultLockKey              = "escalation-sweep"
	DefaultLockTTL              = 10 * time.Minute
	DefaultRedisAddr            = "localhost:6379"
	DefaultRedisPrefix          = "sentinel:lock:"

	// Notifications defaults
	DefaultNotificationsBackend = "log"
	DefaultAsyncBuffer          = 1000
	DefaultAsyncEnqueueTimeout  = time.Second
	DefaultAsyncPublishTimeout  = 5 * time.Second
	DefaultAsyncMaxAttempts     = 3
	DefaultAsyncRetryBackoff    = 200 * time.Millisecond
	DefaultNATSURL              = "nats://127.0.0.1:4222"
	DefaultNATSStream           = "SENTINEL_WORKFLOW"
	DefaultNATSSubjectPrefix    = "sentinel"
	DefaultNATSMaxAge           = 7 * 24 * time.Hour
	DefaultNATSConnectTimeout   = 5 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel        = "info"
	DefaultLoggingFormat       = "json"
	DefaultMetricsAddress      = "127.0.0.1:9090"
	DefaultPrometheusPath      = "/metrics"
	DefaultMetricsNamespace    = "sentinel"
	DefaultTracingSampler      = "ratio"
	DefaultTracingSamplingRate = 1.0
	DefaultTracingServiceName  = "sentinel"
	DefaultTracingTimeout      = 10 * time.Second
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Rules defaults
	if cfg.Rules.Path == "" {
		cfg.Rules.Path = DefaultRulesPath
	}
	if cfg.Rules.WatchDebounce == 0 {
		cfg.Rules.WatchDebounce = DefaultWatchDebounce
	}

	// Violations defaults
	if cfg.Violations.Backend == "" {
		cfg.Violations.Backend = DefaultViolationsBackend
	}
	if cfg.Violations.SQLite.Path == "" {
		cfg.Violations.SQLite.Path = DefaultViolationsSQLitePath
	}
	applySQLiteDefaults(&cfg.Violations.SQLite)

	// Workflow defaults
	if cfg.Workflow.Store.Backend == "" {
		cfg.Workflow.Store.Backend = DefaultWorkflowBackend
	}
	if cfg.Workflow.Store.SQLite.Path == "" {
		cfg.Workflow.Store.SQLite.Path = DefaultWorkflowSQLitePath
	}
	applySQLiteDefaults(&cfg.Workflow.Store.SQLite)
	if cfg.Workflow.MaxUpdateAttempts == 0 {
		cfg.Workflow.MaxUpdateAttempts = DefaultMaxUpdateAttempts
	}
	pg := &cfg.Workflow.Store.Postgres
	if pg.Port == 0 {
		pg.Port = DefaultPostgresPort
	}
	if pg.SSLMode == "" {
		pg.SSLMode = DefaultPostgresSSLMode
	}
	if pg.MaxOpenConns == 0 {
		pg.MaxOpenConns = DefaultPostgresMaxOpenConns
	}
	if pg.ConnMaxLifetime == 0 {
		pg.ConnMaxLifetime = DefaultPostgresConnMaxLifetime
	}

	applyEscalationDefaults(&cfg.Escalation)
	applyNotificationDefaults(&cfg.Notifications)

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = DefaultMetricsAddress
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultPrometheusPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSamplingRate
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
}

func applySQLiteDefaults(cfg *SQLiteConfig) {
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = DefaultSQLiteMaxIdleConns
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = DefaultSQLiteBusyTimeout
	}
}

func applyEscalationDefaults(cfg *EscalationConfig) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultEscalationSchedule
	}
	if cfg.RunTimeout == 0 {
		cfg.RunTimeout = DefaultEscalationRunTimeout
	}
	if cfg.Lock.Backend == "" {
		cfg.Lock.Backend = DefaultLockBackend
	}
	if cfg.Lock.Key == "" {
		cfg.Lock.Key = DefaultLockKey
	}
	if cfg.Lock.TTL == 0 {
		cfg.Lock.TTL = DefaultLockTTL
	}
	if cfg.Lock.Redis.Addr == "" {
		cfg.Lock.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Lock.Redis.Prefix == "" {
		cfg.Lock.Redis.Prefix = DefaultRedisPrefix
	}
}

func applyNotificationDefaults(cfg *NotificationsConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultNotificationsBackend
	}

	a := &cfg.Async
	if a.Buffer == 0 {
		a.Buffer = DefaultAsyncBuffer
	}
	if a.EnqueueTimeout == 0 {
		a.EnqueueTimeout = DefaultAsyncEnqueueTimeout
	}
	if a.PublishTimeout == 0 {
		a.PublishTimeout = DefaultAsyncPublishTimeout
	}
	if a.MaxAttempts == 0 {
		a.MaxAttempts = DefaultAsyncMaxAttempts
	}
	if a.RetryBackoff == 0 {
		a.RetryBackoff = DefaultAsyncRetryBackoff
	}

	n := &cfg.NATS
	if n.URL == "" {
		n.URL = DefaultNATSURL
	}
	if n.Stream == "" {
		n.Stream = DefaultNATSStream
	}
	if n.SubjectPrefix == "" {
		n.SubjectPrefix = DefaultNATSSubjectPrefix
	}
	if n.MaxAge == 0 {
		n.MaxAge = DefaultNATSMaxAge
	}
	if n.ConnectTimeout == 0 {
		n.ConnectTimeout = DefaultNATSConnectTimeout
	}
}
