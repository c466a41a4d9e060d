package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"complyhq/sentinel/pkg/telemetry/health"
	"complyhq/sentinel/pkg/telemetry/metrics"
	"complyhq/sentinel/pkg/workflow"
)

func TestNewServeMux(t *testing.T) {
	cfg := memoryConfig()
	checker := health.New(time.Second)

	t.Run("without metrics", func(t *testing.T) {
		mux := newServeMux(cfg, checker, nil)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, health.ReadinessPath, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", health.ReadinessPath, rec.Code)
		}

		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, cfg.Telemetry.Metrics.Path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404 when metrics are disabled", cfg.Telemetry.Metrics.Path, rec.Code)
		}
	})

	t.Run("with metrics", func(t *testing.T) {
		collector := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
		collector.RecordWorkflowCreated(string(workflow.TypeRemediation), string(workflow.PriorityHigh))
		mux := newServeMux(cfg, checker, collector)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, cfg.Telemetry.Metrics.Path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("metrics status = %d, want 200", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "workflow_created_total") {
			t.Errorf("metrics output missing workflow_created_total:\n%s", rec.Body.String())
		}

		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, health.VersionPath, nil))
		if !strings.Contains(rec.Body.String(), Version) {
			t.Errorf("version output = %s", rec.Body.String())
		}
	})
}

func TestSchedulerConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.Escalation.Schedule = "0 * * * *"
	cfg.Escalation.RunOnStart = true
	cfg.Escalation.Lock.Key = "sweep"
	cfg.Escalation.Lock.TTL = 2 * time.Minute
	cfg.Escalation.RunTimeout = time.Minute

	sc := schedulerConfig(cfg)
	if sc.Schedule != "0 * * * *" || !sc.RunOnStart || sc.LockKey != "sweep" || sc.LockTTL != 2*time.Minute || sc.RunTimeout != time.Minute {
		t.Errorf("schedulerConfig() = %+v", sc)
	}
	if err := sc.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestPrintSweepAndSweepError(t *testing.T) {
	var sb strings.Builder
	printSweep(&sb, workflow.SweepResult{Checked: 4, Overdue: 2, Escalated: 1, AlreadyEscalated: 1})
	if got := sb.String(); got != "checked=4 overdue=2 escalated=1 already_escalated=1 failed=0\n" {
		t.Errorf("printSweep() = %q", got)
	}
	if err := sweepError(workflow.SweepResult{Checked: 4}); err != nil {
		t.Errorf("sweepError() = %v, want nil", err)
	}
	if err := sweepError(workflow.SweepResult{Failed: 2}); err == nil {
		t.Error("sweepError() should report failed workflows")
	}
}
