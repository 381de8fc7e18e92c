package clis

import (
	"fmt"
	"text/tabwriter"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"

	"github.com/spf13/cobra"
)

func StatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "stats",
		Short:        "Count caller-ID numbers by status",
		Args:         cobra.NoArgs,
		RunE:         runStats,
		SilenceUsage: true,
	}

	cmdutil.AddOutputFlag(cmd)
	cmdutil.AddRefreshFlag(cmd)

	return cmd
}

type statsView struct {
	Total     int            `json:"total"`
	ByStatus  map[string]int `json:"by_status"`
	Countries []string       `json:"countries"`
	Providers []string       `json:"providers"`
}

func runStats(cmd *cobra.Command, args []string) error {
	output, err := cmdutil.OutputFormat(cmd)
	if err != nil {
		return err
	}

	sess, err := cmdutil.NewSession(cmd)
	if err != nil {
		return err
	}
	cat, err := loadCatalog(cmd, sess)
	if err != nil {
		return err
	}

	counts := cat.StatusCounts()
	view := statsView{
		Total:     cat.Len(),
		ByStatus:  make(map[string]int, len(statuses)),
		Countries: cat.Countries(),
		Providers: cat.Providers(),
	}
	for _, s := range statuses {
		view.ByStatus[string(s)] = counts[s]
	}

	if output == cmdutil.OutputJSON {
		return cmdutil.PrintJSON(cmd, view)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tCLIS")
	fmt.Fprintln(tw, "------\t----")
	for _, s := range statuses {
		fmt.Fprintf(tw, "%s\t%d\n", s, counts[s])
	}
	fmt.Fprintf(tw, "total\t%d\n", view.Total)
	tw.Flush()
	return nil
}
