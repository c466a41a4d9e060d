package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"complyhq/sentinel/pkg/config"
	"complyhq/sentinel/pkg/escalation"
	"complyhq/sentinel/pkg/notify"
	"complyhq/sentinel/pkg/telemetry/health"
	"complyhq/sentinel/pkg/telemetry/metrics"
	"complyhq/sentinel/pkg/violations"
	vstorage "complyhq/sentinel/pkg/violations/storage"
	"complyhq/sentinel/pkg/workflow"
	wstorage "complyhq/sentinel/pkg/workflow/storage"
)

// components holds the backends a command opened. Close releases them in
// reverse order.
type components struct {
	cfg       *config.Config
	logger    *slog.Logger
	collector *metrics.Collector

	violations violations.Repository
	store      workflow.Store
	publisher  workflow.Publisher
	tap        *notify.ChannelPublisher
	engine     *workflow.Engine

	checks  map[string]health.Pinger
	closers []func() error
}

func newComponents(cfg *config.Config, logger *slog.Logger, collector *metrics.Collector) *components {
	return &components{
		cfg:       cfg,
		logger:    logger,
		collector: collector,
		checks:    make(map[string]health.Pinger),
	}
}

func (c *components) onClose(fn func() error) {
	c.closers = append(c.closers, fn)
}

// Close releases every opened backend.
func (c *components) Close() error {
	var errs []error
	for _, fn := range slices.Backward(c.closers) {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *components) addCheck(name string, v any) {
	if p, ok := v.(health.Pinger); ok {
		c.checks[name] = p
	}
}

// tapEvents subscribes to every event the engine publishes in this process,
// alongside the configured backend. It must be called before buildEngine.
func (c *components) tapEvents(buffer int) (<-chan workflow.Event, func()) {
	if c.tap == nil {
		c.tap = notify.NewChannelPublisher()
		c.onClose(c.tap.Close)
	}
	return c.tap.Subscribe(buffer)
}

// openViolations opens the configured violation repository.
func (c *components) openViolations() (violations.Repository, error) {
	if c.violations != nil {
		return c.violations, nil
	}

	vc := c.cfg.Violations
	var repo violations.Repository
	switch vc.Backend {
	case "memory":
		repo = vstorage.NewMemoryStorage()
	case "sqlite":
		if err := ensureDir(vc.SQLite.Path); err != nil {
			return nil, err
		}
		s, err := vstorage.NewSQLiteStorage(&vstorage.SQLiteConfig{
			Path:         vc.SQLite.Path,
			MaxOpenConns: vc.SQLite.MaxOpenConns,
			MaxIdleConns: vc.SQLite.MaxIdleConns,
			WALMode:      !vc.SQLite.DisableWAL,
			BusyTimeout:  vc.SQLite.BusyTimeout,
			Logger:       c.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open violation store: %w", err)
		}
		repo = s
	default:
		return nil, fmt.Errorf("unsupported violations backend: %s", vc.Backend)
	}

	c.violations = repo
	c.addCheck("violations_store", repo)
	c.onClose(repo.Close)
	return repo, nil
}

// openWorkflowStore opens the configured workflow store.
func (c *components) openWorkflowStore(ctx context.Context) (workflow.Store, error) {
	if c.store != nil {
		return c.store, nil
	}

	sc := c.cfg.Workflow.Store
	var store workflow.Store
	switch sc.Backend {
	case "memory":
		store = wstorage.NewMemoryStore()
	case "sqlite":
		if err := ensureDir(sc.SQLite.Path); err != nil {
			return nil, err
		}
		s, err := wstorage.NewSQLiteStore(ctx, wstorage.SQLiteConfig{
			Path:        sc.SQLite.Path,
			BusyTimeout: sc.SQLite.BusyTimeout,
			Logger:      c.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open workflow store: %w", err)
		}
		store = s
	case "postgres":
		s, err := wstorage.NewPostgresStore(ctx, wstorage.PostgresConfig{
			DSN:             sc.Postgres.ConnString(),
			MaxOpenConns:    sc.Postgres.MaxOpenConns,
			ConnMaxLifetime: sc.Postgres.ConnMaxLifetime,
			Logger:          c.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open workflow store: %w", err)
		}
		store = s
	default:
		return nil, fmt.Errorf("unsupported workflow store backend: %s", sc.Backend)
	}

	c.store = store
	c.addCheck("workflow_store", store)
	c.onClose(store.Close)
	return store, nil
}

// buildPublisher creates the event publisher for the notifications backend,
// wrapped in an AsyncPublisher when async delivery is enabled.
func (c *components) buildPublisher(ctx context.Context) (workflow.Publisher, error) {
	if c.publisher != nil {
		return c.publisher, nil
	}

	nc := c.cfg.Notifications
	var pub workflow.Publisher
	switch nc.Backend {
	case "none":
		pub = notify.Multi(nil)
	case "log":
		pub = notify.NewLogPublisher(c.logger, slog.LevelInfo)
	case "nats":
		np, err := notify.NewNATSPublisher(ctx, &notify.NATSConfig{
			URL:            nc.NATS.URL,
			Stream:         nc.NATS.Stream,
			SubjectPrefix:  nc.NATS.SubjectPrefix,
			MaxAge:         nc.NATS.MaxAge,
			ConnectTimeout: nc.NATS.ConnectTimeout,
			Logger:         c.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect notification backend: %w", err)
		}
		c.addCheck("notifications", np)
		c.onClose(np.Close)
		pub = np
	default:
		return nil, fmt.Errorf("unsupported notifications backend: %s", nc.Backend)
	}

	if nc.Async.Enabled && nc.Backend != "none" {
		asyncCfg := &notify.AsyncConfig{
			Buffer:         nc.Async.Buffer,
			EnqueueTimeout: nc.Async.EnqueueTimeout,
			PublishTimeout: nc.Async.PublishTimeout,
			MaxAttempts:    nc.Async.MaxAttempts,
			RetryBackoff:   nc.Async.RetryBackoff,
			Logger:         c.logger,
		}
		if c.collector != nil {
			asyncCfg.Metrics = c.collector
		}
		async := notify.NewAsyncPublisher(pub, asyncCfg)
		c.onClose(async.Close)
		pub = async
	}
	if c.tap != nil {
		pub = notify.Multi{pub, c.tap}
	}

	c.publisher = pub
	return pub, nil
}

// buildEngine wires the workflow engine from configuration. Configured chains,
// escalation rules and notification triggers extend the built-in ones unless
// the defaults are disabled.
func (c *components) buildEngine(ctx context.Context) (*workflow.Engine, error) {
	if c.engine != nil {
		return c.engine, nil
	}

	store, err := c.openWorkflowStore(ctx)
	if err != nil {
		return nil, err
	}
	pub, err := c.buildPublisher(ctx)
	if err != nil {
		return nil, err
	}

	chains := workflow.NewChainRegistry()
	for _, chain := range c.cfg.Workflow.Chains {
		if err := chains.Register(chain); err != nil {
			return nil, fmt.Errorf("approval chain %s: %w", chain.ID, err)
		}
	}

	escalationRules := []workflow.EscalationRule{}
	if !c.cfg.Escalation.DisableDefaultRules {
		escalationRules = append(escalationRules, workflow.DefaultEscalationRules()...)
	}
	configuredRules, err := workflow.CompileEscalationRules(c.cfg.Escalation.Rules, c.logger)
	if err != nil {
		return nil, err
	}
	escalationRules = append(escalationRules, configuredRules...)

	triggers := []workflow.NotificationTrigger{}
	if !c.cfg.Notifications.DisableDefaultTriggers {
		triggers = append(triggers, workflow.DefaultNotificationTriggers()...)
	}
	configuredTriggers, err := workflow.CompileNotificationTriggers(c.cfg.Notifications.Triggers, nil, c.logger)
	if err != nil {
		return nil, err
	}
	triggers = append(triggers, configuredTriggers...)

	engineCfg := &workflow.Config{
		Publisher:            pub,
		Chains:               chains,
		EscalationRules:      escalationRules,
		NotificationTriggers: triggers,
		MaxUpdateAttempts:    c.cfg.Workflow.MaxUpdateAttempts,
		Logger:               c.logger,
	}
	if c.collector != nil {
		engineCfg.Metrics = c.collector
	}

	engine, err := workflow.NewEngine(store, engineCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow engine: %w", err)
	}
	c.engine = engine
	return engine, nil
}

// buildLocker returns the lock guarding scheduled sweeps.
func (c *components) buildLocker() (escalation.Locker, error) {
	lc := c.cfg.Escalation.Lock
	switch lc.Backend {
	case "local":
		return escalation.NewLocalLocker(), nil
	case "redis":
		locker := escalation.NewRedisLocker(escalation.RedisConfig{
			Addr:     lc.Redis.Addr,
			Password: lc.Redis.Password,
			DB:       lc.Redis.DB,
			Prefix:   lc.Redis.Prefix,
		})
		c.addCheck("escalation_lock", locker)
		c.onClose(locker.Close)
		return locker, nil
	}
	return nil, fmt.Errorf("unsupported lock backend: %s", lc.Backend)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory %s: %w", dir, err)
	}
	return nil
}
