package loadtest

import (
	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/perf/loadtest"

	"github.com/spf13/cobra"
)

func StatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the runner's current load-test status",
		Long: `Show whether a load test is running and its live counters.

Runs recorded as active that the runner no longer reports are marked
completed in the local history.

Examples:
  dialctl loadtest status
  dialctl loadtest status -o json`,
		Args:         cobra.NoArgs,
		RunE:         runStatus,
		SilenceUsage: true,
	}

	cmdutil.AddOutputFlag(cmd)

	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	output, err := cmdutil.OutputFormat(cmd)
	if err != nil {
		return err
	}
	sess, err := cmdutil.NewSession(cmd)
	if err != nil {
		return err
	}

	st, err := sess.Source.LoadTestStatus(cmd.Context())
	if err != nil {
		return err
	}

	if !st.IsRunning {
		if runs, err := openRuns(); err == nil {
			settleActive(sess, runs, loadtest.StateCompleted)
			runs.Close()
		}
	}

	if output == cmdutil.OutputJSON {
		return cmdutil.PrintJSON(cmd, st)
	}
	printStatus(cmd.OutOrStdout(), st)
	return nil
}
