/*
Package cli provides helpers shared by the prospects command.

Output Formatting:

Command results are written as text, JSON or CSV:

	format, err := cli.ParseOutputFormat(flagValue)
	if err != nil {
		return err
	}
	if err := cli.NewFormatter(format).FormatTo(os.Stdout, result); err != nil {
		return err
	}

CSV output is limited to candidate records.

Exit Codes:

Commands return errors; main maps them with ExitCode. Invalid flags,
configuration or input exit with 2, a sweep that left stale records behind
exits with 3 and every other failure exits with 1.

Progress Reporting:

Replaying a file of batch messages reports progress on stderr:

	progress := cli.NewProgressReporter(nil)
	progress.Start(len(messages))
	for _, msg := range messages {
		_, err := processor.Process(ctx, msg)
		progress.Advance(err == nil)
	}
	tally := progress.Finish()

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
