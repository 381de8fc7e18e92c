package quota

import (
	"context"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/perf/quota"

	"github.com/spf13/cobra"
)

// NewCommand returns the "quota" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Inspect and manage per-country CLI quotas",
		Long: `Inspect and manage the daily caller-ID usage budget of each country.

Usage is classified as nominal below 70% of the daily limit, warning from
70% and critical from 90%. A limit of 0 means unlimited.`,
	}

	cmd.AddCommand(ListCommand())
	cmd.AddCommand(SetCommand())
	cmd.AddCommand(ResetCommand())
	cmd.AddCommand(SummaryCommand())
	cmd.AddCommand(HistoryCommand())
	cmd.AddCommand(PruneCommand())

	return cmd
}

// loadEngine builds a quota engine for the session and fills its cache.
func loadEngine(ctx context.Context, cmd *cobra.Command, sess *cmdutil.Session) (*quota.Engine, error) {
	engine := quota.New(sess.Source, quota.WithLogger(sess.Log))
	err := cmdutil.WithSpinner(cmd, "Fetching CLI quotas...", func() error {
		return engine.Refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return engine, nil
}
