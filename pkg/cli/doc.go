/*
Package cli provides helpers shared by the sentinel subcommands.

Output Formatting:

Results implementing Tabular print as aligned text columns or CSV; any value
prints as JSON:

	format, err := cli.ParseOutputFormat(outputFlag)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(os.Stdout, result)

Progress Reporting:

	progress := cli.NewProgressReporter(os.Stderr, "saving violations")
	progress.Start(int64(len(found)))
	for _, v := range found {
		// save v
		progress.Increment()
	}
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

Exit Codes:

ExitCode maps command errors to process exit codes. A ConfigError exits with
ExitUsage and an ExitError with its own code (ExitViolations for
--fail-on-violations). Anything else is ExitFailure.
*/
package cli
