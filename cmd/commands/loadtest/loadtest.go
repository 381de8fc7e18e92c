package loadtest

import (
	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/perf/loadtest"
	"nathanbeddoewebdev/dialctl/internal/runstore"

	"github.com/spf13/cobra"
)

// NewCommand returns the "loadtest" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "loadtest",
		Aliases: []string{"lt"},
		Short:   "Run and inspect synthetic load tests",
		Long: `Start, stop and inspect synthetic load tests on the dialer's test runner.

Runs started from this machine are recorded locally; see "dialctl loadtest runs".`,
	}

	cmd.AddCommand(StartCommand())
	cmd.AddCommand(StopCommand())
	cmd.AddCommand(StatusCommand())
	cmd.AddCommand(ResultsCommand())
	cmd.AddCommand(ExportCommand())
	cmd.AddCommand(RunsCommand())

	return cmd
}

// newController builds a controller for the session's source that records
// its runs in runs.
func newController(sess *cmdutil.Session, runs loadtest.RunRecorder, opts ...loadtest.Option) *loadtest.Controller {
	base := []loadtest.Option{
		loadtest.WithSource(sess.SourceName),
		loadtest.WithCPSCeiling(float64(sess.Config.CPSCeiling)),
		loadtest.WithLogger(sess.Log),
	}
	if runs != nil {
		base = append(base, loadtest.WithRecorder(runs))
	}
	return loadtest.New(sess.Source, append(base, opts...)...)
}

// openRuns opens the local run history.
func openRuns() (*runstore.SQLiteRepository, error) {
	return runstore.Open()
}
