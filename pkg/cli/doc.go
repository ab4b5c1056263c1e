/*
Package cli holds helpers shared by the glim commands: output formatting,
batch progress, signal handling and the error types that decide the exit
code.

Output Formatting:

	format, err := cli.ParseOutputFormat(flagValue)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(os.Stdout, info)

Progress Reporting:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(len(repos))
	for _, repo := range repos {
		if err := render(repo); err != nil {
			progress.Fail(repo, err)
			continue
		}
		progress.Done(repo)
	}
	ok, failed := progress.Finish()

Signal Handling:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

Exit Codes:

	os.Exit(cli.ExitCode(err))
*/
package cli
