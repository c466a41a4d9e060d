package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"complyhq/sentinel/pkg/cli"
	"complyhq/sentinel/pkg/config"
	"complyhq/sentinel/pkg/escalation"
	"complyhq/sentinel/pkg/rules"
	"complyhq/sentinel/pkg/rules/source"
	"complyhq/sentinel/pkg/telemetry/health"
	"complyhq/sentinel/pkg/telemetry/logging"
	"complyhq/sentinel/pkg/telemetry/metrics"
	"complyhq/sentinel/pkg/telemetry/tracing"
	"complyhq/sentinel/pkg/workflow"
)

const shutdownTimeout = 15 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the escalation scheduler and the health and metrics server",
	Long: `Run starts the long-running sentinel process:

  - the escalation scheduler sweeps active workflows on the configured cron
    schedule, guarded by the escalation lock
  - an HTTP server on telemetry.metrics.listen_address serves /healthz,
    /readyz, /version and, when metrics are enabled, the Prometheus endpoint
  - with rules.watch set, rule files are validated again whenever they change

The process stops on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()
	ctx = logging.WithCommand(ctx, "run")

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
	}

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	comps := newComponents(cfg, logger, collector)
	defer func() {
		if err := comps.Close(); err != nil {
			logger.Warn("failed to close components", "error", err)
		}
	}()

	engine, err := comps.buildEngine(ctx)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	if _, err := comps.openViolations(); err != nil {
		return cli.NewCommandError("run", err)
	}
	locker, err := comps.buildLocker()
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	scheduler := escalation.NewScheduler(engine, locker, schedulerConfig(cfg), logger)
	if collector != nil {
		scheduler.SetMetrics(collector)
	}

	checker := health.New(health.DefaultCheckTimeout)
	for name, p := range comps.checks {
		checker.RegisterCheck(name, health.PingCheck(p))
	}
	server := &http.Server{
		Addr:              cfg.Telemetry.Metrics.ListenAddress,
		Handler:           newServeMux(cfg, checker, collector),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("serving health endpoints",
			"address", server.Addr,
			"metrics", collector != nil,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := scheduler.Start(gctx); err != nil {
		stop()
		_ = g.Wait()
		return cli.NewCommandError("run", err)
	}
	defer scheduler.Stop()
	if next := scheduler.NextRun(); next != nil {
		logger.Info("next escalation sweep scheduled", "at", next.Format(time.RFC3339))
	}

	if cfg.Rules.Watch {
		g.Go(func() error {
			return watchRuleFiles(gctx, cfg, logger)
		})
	}

	if err := g.Wait(); err != nil {
		return cli.NewCommandError("run", err)
	}
	logger.Info("sentinel stopped")
	return nil
}

func newServeMux(cfg *config.Config, checker *health.Checker, collector *metrics.Collector) *http.ServeMux {
	mux := http.NewServeMux()
	health.Mount(mux, checker, Version, GitCommit, BuildDate)
	if collector != nil {
		mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
	}
	return mux
}

// watchRuleFiles logs every successful reload so broken rule changes are
// caught before the next evaluation run.
func watchRuleFiles(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	src := source.NewFileSource(cfg.Rules.Path, logger).WithStrict(cfg.Rules.Strict)
	if _, err := src.LoadRules(ctx); err != nil {
		logger.Warn("initial rule load failed", "path", cfg.Rules.Path, "error", err)
	}
	watcher := source.NewWatcher(src, cfg.Rules.WatchDebounce, logger)
	err := watcher.Watch(ctx, func(loaded []*rules.Rule) {
		logger.Info("rules reloaded", "path", cfg.Rules.Path, "rule_count", len(loaded))
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func schedulerConfig(cfg *config.Config) *escalation.Config {
	return &escalation.Config{
		Schedule:   cfg.Escalation.Schedule,
		LockKey:    cfg.Escalation.Lock.Key,
		LockTTL:    cfg.Escalation.Lock.TTL,
		RunTimeout: cfg.Escalation.RunTimeout,
		RunOnStart: cfg.Escalation.RunOnStart,
	}
}

func printSweep(w io.Writer, r workflow.SweepResult) {
	fmt.Fprintf(w, "checked=%d overdue=%d escalated=%d already_escalated=%d failed=%d\n",
		r.Checked, r.Overdue, r.Escalated, r.AlreadyEscalated, r.Failed)
	for _, err := range r.Errors {
		fmt.Fprintf(w, "  error: %v\n", err)
	}
}

func sweepError(r workflow.SweepResult) error {
	if r.Failed == 0 {
		return nil
	}
	return &cli.ExitError{Code: cli.ExitFailure, Reason: fmt.Sprintf("%d workflows failed to escalate", r.Failed)}
}
