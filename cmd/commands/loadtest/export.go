package loadtest

import (
	"fmt"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/perf/loadtest"

	"github.com/spf13/cobra"
)

func ExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export load-test results as JSON, CSV or Excel",
		Long: `Export load-test results in a local file format.

By default the latest results are fetched from the runner. With --run the
result stored in the local run history is exported instead, so older runs
stay available after the runner has moved on.

On a terminal the file is written to load-test-results.<ext> unless
--file is given; otherwise it goes to standard output.

Examples:
  dialctl loadtest export --format csv
  dialctl loadtest export --format excel --file q3.xls
  dialctl loadtest export --run 1b2c3d4e --format json`,
		Args:         cobra.NoArgs,
		RunE:         runExport,
		SilenceUsage: true,
	}

	cmd.Flags().String("format", domain.FormatCSV, "Export format: json, csv or excel")
	cmd.Flags().String("file", "", "Write the export to this path")
	cmd.Flags().String("run", "", "Export a recorded run by ID (or ID prefix)")

	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	file, _ := cmd.Flags().GetString("file")
	runID, _ := cmd.Flags().GetString("run")

	var res *domain.LoadTestResult
	if runID != "" {
		run, err := findRun(runID)
		if err != nil {
			return err
		}
		if run.Result == nil {
			return fmt.Errorf("export load test results: run %s: %w", shortID(run.ID), domain.ErrNoResults)
		}
		res = run.Result
	} else {
		sess, err := cmdutil.NewSession(cmd)
		if err != nil {
			return err
		}
		ctrl := newController(sess, nil, loadtest.WithManualPolling())
		defer ctrl.Close()

		res, err = ctrl.FetchResults(cmd.Context())
		if err != nil {
			return err
		}
	}

	data, err := loadtest.Export(res, format)
	if err != nil {
		return err
	}
	if file == "" && cmdutil.Interactive() {
		file = defaultFileName(format)
	}
	return writeOutput(cmd, file, data, format)
}
