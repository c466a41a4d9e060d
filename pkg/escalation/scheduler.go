package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"complyhq/sentinel/pkg/workflow"
)

// Sweeper runs one escalation sweep. *workflow.Engine implements it.
type Sweeper interface {
	CheckEscalations(ctx context.Context) (workflow.SweepResult, error)
}

// Config configures the Scheduler.
type Config struct {
	// Schedule is a standard five-field cron expression. An empty schedule
	// disables the scheduler.
	// Default: "*/15 * * * *"
	Schedule string

	// LockKey names the lock that serialises sweeps across processes.
	// Default: "escalation-sweep"
	LockKey string

	// LockTTL bounds how long a crashed holder blocks other processes.
	// Default: 10 minutes
	LockTTL time.Duration

	// RunTimeout bounds a single sweep. Default: 5 minutes
	RunTimeout time.Duration

	// RunOnStart triggers a sweep immediately when the scheduler starts.
	RunOnStart bool
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		Schedule:   "*/15 * * * *",
		LockKey:    "escalation-sweep",
		LockTTL:    10 * time.Minute,
		RunTimeout: 5 * time.Minute,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("invalid cron schedule %q: %w", c.Schedule, err)
		}
	}
	if c.LockTTL < 0 {
		return errors.New("lock ttl must not be negative")
	}
	if c.RunTimeout < 0 {
		return errors.New("run timeout must not be negative")
	}
	return nil
}

// RunMetrics observes scheduled sweeps.
type RunMetrics interface {
	RecordScheduledSweep(outcome string, duration time.Duration)
}

// Run outcomes passed to RunMetrics.
const (
	OutcomeCompleted = "completed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Scheduler runs escalation sweeps on a cron schedule.
type Scheduler struct {
	sweeper Sweeper
	locker  Locker
	config  *Config
	metrics RunMetrics
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewScheduler creates a scheduler. A nil locker uses a LocalLocker and a nil
// config uses DefaultConfig.
func NewScheduler(sweeper Sweeper, locker Locker, config *Config, logger *slog.Logger) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	if config.LockKey == "" {
		config.LockKey = DefaultConfig().LockKey
	}
	if config.LockTTL == 0 {
		config.LockTTL = DefaultConfig().LockTTL
	}
	if config.RunTimeout == 0 {
		config.RunTimeout = DefaultConfig().RunTimeout
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		sweeper: sweeper,
		locker:  locker,
		config:  config,
		cron:    cron.New(),
		logger:  logger.With("component", "escalation.scheduler"),
	}
}

// SetMetrics installs a metrics recorder. It must be called before Start.
func (s *Scheduler) SetMetrics(m RunMetrics) {
	s.metrics = m
}

// Start schedules sweeps and returns immediately. The scheduler stops when ctx is
// cancelled or Stop is called.
//
// Common cron expressions:
//   - "*/15 * * * *" - Every 15 minutes
//   - "0 * * * *"    - Hourly
//   - "0 8 * * 1-5"  - Weekdays at 8 AM
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("escalation scheduler already running")
	}
	if s.config.Schedule == "" {
		s.logger.Info("escalation schedule not configured, skipping scheduler")
		return nil
	}
	if err := s.config.Validate(); err != nil {
		return err
	}

	_, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule escalation sweep: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("escalation scheduler started",
		"schedule", s.config.Schedule,
		"lock_key", s.config.LockKey,
		"lock_ttl", s.config.LockTTL,
	)

	if s.config.RunOnStart {
		go s.RunOnce(ctx)
	}

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// RunOnce performs a single sweep if the lock can be taken. skipped is true when
// another holder owns the lock.
func (s *Scheduler) RunOnce(ctx context.Context) (result workflow.SweepResult, skipped bool, err error) {
	start := time.Now()
	outcome := OutcomeCompleted
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordScheduledSweep(outcome, time.Since(start))
		}
	}()

	release, ok, err := s.locker.TryLock(ctx, s.config.LockKey, s.config.LockTTL)
	if err != nil {
		outcome = OutcomeFailed
		s.logger.Error("failed to acquire escalation lock", "error", err)
		return result, false, err
	}
	if !ok {
		outcome = OutcomeSkipped
		s.logger.Info("escalation sweep skipped, lock held elsewhere", "lock_key", s.config.LockKey)
		return result, true, nil
	}
	defer func() {
		// The sweep context may already be cancelled; release on a fresh one.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if rerr := release(rctx); rerr != nil {
			s.logger.Warn("failed to release escalation lock", "error", rerr)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	s.logger.Info("starting scheduled escalation sweep")
	result, err = s.sweeper.CheckEscalations(runCtx)
	if err != nil {
		outcome = OutcomeFailed
		s.logger.Error("scheduled escalation sweep failed", "error", err)
		return result, false, err
	}
	if result.Failed > 0 {
		s.logger.Warn("scheduled escalation sweep completed with failures",
			"escalated", result.Escalated,
			"failed", result.Failed,
		)
	} else {
		s.logger.Debug("scheduled escalation sweep completed", "escalated", result.Escalated)
	}
	return result, false, nil
}

// Stop stops the scheduler and waits for a running sweep to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("escalation scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled sweep time, or nil when not scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
