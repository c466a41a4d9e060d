package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"complyhq/sentinel/pkg/cli"
	"complyhq/sentinel/pkg/escalation"
	"complyhq/sentinel/pkg/telemetry/logging"
)

var escalateForce bool

var escalateCmd = &cobra.Command{
	Use:   "escalate",
	Short: "Run one escalation sweep",
	Long: `Run one escalation sweep over every active workflow.

The sweep takes the configured escalation lock first so it never overlaps with
a running "sentinel run". Use --force to skip the lock.`,
	Args: cobra.NoArgs,
	RunE: runEscalate,
}

func init() {
	rootCmd.AddCommand(escalateCmd)
	escalateCmd.Flags().BoolVar(&escalateForce, "force", false, "sweep without taking the escalation lock")
}

func runEscalate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()
	ctx = logging.WithCommand(ctx, "escalate")

	comps := newComponents(cfg, logger, nil)
	defer comps.Close()

	engine, err := comps.buildEngine(ctx)
	if err != nil {
		return cli.NewCommandError("escalate", err)
	}

	out := cmd.OutOrStdout()
	if escalateForce {
		result, err := engine.CheckEscalations(ctx)
		if err != nil {
			return cli.NewCommandError("escalate", err)
		}
		printSweep(out, result)
		return sweepError(result)
	}

	locker, err := comps.buildLocker()
	if err != nil {
		return cli.NewCommandError("escalate", err)
	}
	scheduler := escalation.NewScheduler(engine, locker, schedulerConfig(cfg), logger)
	result, skipped, err := scheduler.RunOnce(ctx)
	if err != nil {
		return cli.NewCommandError("escalate", err)
	}
	if skipped {
		fmt.Fprintln(out, "escalation sweep skipped: lock held by another process")
		return nil
	}
	printSweep(out, result)
	return sweepError(result)
}
