package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"complyhq/sentinel/pkg/cli"
	"complyhq/sentinel/pkg/config"
	"complyhq/sentinel/pkg/telemetry/logging"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Sentinel - segregation of duties compliance engine",
	Long: `Sentinel evaluates declarative compliance rules (segregation of duties,
thresholds and generic conditions) over batches of records and tracks every
violation through an approval and remediation workflow with SLA escalation.

Configuration is read from --config and overridden by SENTINEL_* environment
variables.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCode(err)
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

// loadConfig installs the process configuration and logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, nil, cli.NewConfigError("config", err.Error())
	}
	cfg := config.GetConfig()

	logCfg := logging.FromConfig(cfg.Telemetry.Logging)
	if logLevel != "" {
		logCfg.Level = logLevel
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, nil, cli.NewConfigError("log-level", err.Error())
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}
