package quota

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/quotastore"
	"nathanbeddoewebdev/dialctl/internal/util"

	"github.com/spf13/cobra"
)

func HistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <country>",
		Short: "Show recorded quota snapshots for a country",
		Long: `Show the quota snapshots saved by "dialctl quota list --record" for one
country, newest first.

Examples:
  dialctl quota history usa
  dialctl quota history mexico --limit 50 -o json`,
		Args:         cobra.ExactArgs(1),
		RunE:         runHistory,
		SilenceUsage: true,
	}

	cmd.Flags().Int("limit", 20, "Number of snapshots to display")
	cmdutil.AddOutputFlag(cmd)

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	output, err := cmdutil.OutputFormat(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("limit must be greater than 0")
	}
	country := util.NormalizeKey(args[0])

	repo, err := quotastore.Open()
	if err != nil {
		return err
	}
	defer repo.Close()

	snapshots, err := repo.History(country, limit)
	if err != nil {
		return err
	}

	if output == cmdutil.OutputJSON {
		if snapshots == nil {
			snapshots = []quotastore.Snapshot{}
		}
		return cmdutil.PrintJSON(cmd, snapshots)
	}
	if len(snapshots) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No snapshots recorded for %s.\n", strings.ToUpper(country))
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RECORDED\tSOURCE\tUSED\tLIMIT\tUSAGE\tTIER")
	fmt.Fprintln(w, "--------\t------\t----\t-----\t-----\t----")
	for _, s := range snapshots {
		q := s.Quota()
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%.0f%%\t%s\n",
			s.RecordedAt.Local().Format("2006-01-02 15:04"),
			s.Source,
			q.Used,
			formatLimit(q.DailyLimit),
			domain.UsagePercent(q.Used, q.DailyLimit),
			domain.ClassifyUsage(q.Used, q.DailyLimit),
		)
	}
	return w.Flush()
}
