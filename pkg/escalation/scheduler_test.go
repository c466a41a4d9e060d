package escalation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"complyhq/sentinel/pkg/workflow"
)

type fakeSweeper struct {
	calls  atomic.Int32
	result workflow.SweepResult
	err    error
	block  chan struct{}
}

func (f *fakeSweeper) CheckEscalations(ctx context.Context) (workflow.SweepResult, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return workflow.SweepResult{}, ctx.Err()
		}
	}
	return f.result, f.err
}

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *outcomeRecorder) RecordScheduledSweep(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantRunning bool
		wantError   bool
	}{
		{"every fifteen minutes", "*/15 * * * *", true, false},
		{"hourly", "0 * * * *", true, false},
		{"empty schedule - no error, not running", "", false, false},
		{"invalid schedule", "invalid cron", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Schedule = tt.schedule
			s := NewScheduler(&fakeSweeper{}, nil, cfg, nil)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := s.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Errorf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if s.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", s.IsRunning(), tt.wantRunning)
			}
			if tt.wantRunning {
				next := s.NextRun()
				if next == nil {
					t.Error("NextRun() returned nil for running scheduler")
				} else if !next.After(time.Now().Add(-time.Second)) {
					t.Errorf("NextRun() = %v, want a future time", next)
				}
				s.Stop()
				if s.IsRunning() {
					t.Error("scheduler still running after Stop()")
				}
			}
		})
	}
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	s := NewScheduler(&fakeSweeper{}, nil, DefaultConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(ctx); err == nil {
		t.Error("second Start() should fail")
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for s.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.IsRunning() {
		t.Error("scheduler should stop when its context is cancelled")
	}
}

func TestScheduler_RunOnce(t *testing.T) {
	sweeper := &fakeSweeper{result: workflow.SweepResult{Checked: 4, Overdue: 2, Escalated: 2}}
	metrics := &outcomeRecorder{}
	s := NewScheduler(sweeper, nil, DefaultConfig(), nil)
	s.SetMetrics(metrics)

	result, skipped, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if skipped {
		t.Error("RunOnce() should not be skipped without contention")
	}
	if result.Escalated != 2 {
		t.Errorf("Escalated = %d, want 2", result.Escalated)
	}

	sweeper.err = errors.New("store down")
	if _, _, err := s.RunOnce(context.Background()); err == nil {
		t.Error("RunOnce() should return the sweep error")
	}

	if got := metrics.outcomes; len(got) != 2 || got[0] != OutcomeCompleted || got[1] != OutcomeFailed {
		t.Errorf("outcomes = %v", got)
	}
}

func TestScheduler_SkipsWhenLockHeld(t *testing.T) {
	locker := NewLocalLocker()
	blocking := &fakeSweeper{block: make(chan struct{})}
	other := &fakeSweeper{}

	cfg := DefaultConfig()
	first := NewScheduler(blocking, locker, cfg, nil)
	second := NewScheduler(other, locker, cfg, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		first.RunOnce(context.Background())
	}()

	deadline := time.Now().Add(2 * time.Second)
	for blocking.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	_, skipped, err := second.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if !skipped {
		t.Error("RunOnce() should skip while another sweep holds the lock")
	}
	if other.calls.Load() != 0 {
		t.Error("skipped sweep must not call the sweeper")
	}

	close(blocking.block)
	<-done

	if _, skipped, _ := second.RunOnce(context.Background()); skipped {
		t.Error("RunOnce() should run once the lock is released")
	}
}

type failingLocker struct{}

func (failingLocker) TryLock(context.Context, string, time.Duration) (func(context.Context) error, bool, error) {
	return nil, false, errors.New("connection refused")
}

func TestScheduler_LockError(t *testing.T) {
	sweeper := &fakeSweeper{}
	s := NewScheduler(sweeper, failingLocker{}, DefaultConfig(), nil)
	if _, _, err := s.RunOnce(context.Background()); err == nil {
		t.Error("RunOnce() should fail when the lock cannot be checked")
	}
	if sweeper.calls.Load() != 0 {
		t.Error("sweeper should not run without the lock")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"disabled", func(c *Config) { c.Schedule = "" }, false},
		{"bad schedule", func(c *Config) { c.Schedule = "every minute" }, true},
		{"negative ttl", func(c *Config) { c.LockTTL = -time.Second }, true},
		{"negative timeout", func(c *Config) { c.RunTimeout = -time.Second }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
