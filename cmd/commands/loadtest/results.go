package loadtest

import (
	"fmt"
	"os"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/perf/loadtest"

	"github.com/spf13/cobra"
)

func ResultsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show or download the latest load-test results",
		Long: `Show the results of the most recent load test.

With --format csv or excel the file produced by the runner is downloaded
instead, to --file or standard output.

Examples:
  dialctl loadtest results
  dialctl loadtest results -o json
  dialctl loadtest results --format excel --file results.xls`,
		Args:         cobra.NoArgs,
		RunE:         runResults,
		SilenceUsage: true,
	}

	cmdutil.AddOutputFlag(cmd)
	cmd.Flags().String("format", "", "Download the runner's export: csv or excel")
	cmd.Flags().String("file", "", "Write the download to this path")

	return cmd
}

func runResults(cmd *cobra.Command, args []string) error {
	output, err := cmdutil.OutputFormat(cmd)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	file, _ := cmd.Flags().GetString("file")

	sess, err := cmdutil.NewSession(cmd)
	if err != nil {
		return err
	}

	if format != "" {
		if format != domain.FormatCSV && format != domain.FormatExcel {
			return fmt.Errorf("unsupported format %q (use csv or excel)", format)
		}
		var data []byte
		err := cmdutil.WithSpinner(cmd, "Downloading results...", func() error {
			var err error
			data, err = sess.Source.ExportLoadTestResults(cmd.Context(), format)
			return err
		})
		if err != nil {
			return err
		}
		return writeOutput(cmd, file, data, format)
	}

	res, err := sess.Source.LoadTestResults(cmd.Context())
	if err != nil {
		return err
	}
	if output == cmdutil.OutputJSON {
		return cmdutil.PrintJSON(cmd, res)
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}

// writeOutput writes data to path, or to stdout when path is empty.
func writeOutput(cmd *cobra.Command, path string, data []byte, format string) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s results to %s\n", format, path)
	return nil
}

// defaultFileName names an export written without --file on a terminal.
func defaultFileName(format string) string {
	return "load-test-results" + loadtest.FileExtension(format)
}
