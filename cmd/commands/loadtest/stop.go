package loadtest

import (
	"fmt"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/auditlog"
	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/perf/loadtest"
	"nathanbeddoewebdev/dialctl/internal/runstore"

	"github.com/spf13/cobra"
)

func StopCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running load test",
		Long: `Stop the load test running on the dialer's test runner.

Results are finalized by the runner shortly after the stop; fetch them
with "dialctl loadtest results".

Examples:
  dialctl loadtest stop
  dialctl loadtest stop --yes`,
		Args:         cobra.NoArgs,
		Annotations:  cmdutil.Audited(),
		RunE:         runStop,
		SilenceUsage: true,
	}

	cmdutil.AddYesFlag(cmd)

	return cmd
}

func runStop(cmd *cobra.Command, args []string) error {
	sess, err := cmdutil.NewSession(cmd)
	if err != nil {
		return err
	}
	cmdutil.Tag(cmd, auditlog.Metadata{Op: "loadtest.stop"})

	ok, err := cmdutil.Confirm(cmd)("Stop the running load test?")
	if err != nil {
		return fmt.Errorf("stop load test: %w", err)
	}
	if !ok {
		return fmt.Errorf("stop load test: %w", domain.ErrCancelled)
	}

	err = cmdutil.WithSpinner(cmd, "Stopping load test...", func() error {
		return sess.Source.StopLoadTest(cmd.Context())
	})
	if err != nil {
		return err
	}

	if runs, err := openRuns(); err == nil {
		defer runs.Close()
		for _, id := range settleActive(sess, runs, loadtest.StateStopped) {
			cmdutil.Tag(cmd, auditlog.Metadata{Target: id})
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Load test stopped.")
	fmt.Fprintln(cmd.OutOrStdout(), "Fetch results with: dialctl loadtest results")
	return nil
}

// settleActive moves the session source's active runs to state and
// returns their IDs.
func settleActive(sess *cmdutil.Session, runs *runstore.SQLiteRepository, state loadtest.State) []string {
	active, err := runs.ListActive()
	if err != nil {
		sess.Log.Warn().Err(err).Msg("listing active runs failed")
		return nil
	}
	var ids []string
	for i := range active {
		run := &active[i]
		if run.Source != sess.SourceName {
			continue
		}
		run.State = string(state)
		if err := runs.Save(run); err != nil {
			sess.Log.Warn().Err(err).Str("run", run.ID).Msg("updating run failed")
			continue
		}
		ids = append(ids, run.ID)
	}
	return ids
}
