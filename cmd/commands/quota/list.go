package quota

import (
	"fmt"
	"time"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/quotastore"

	"github.com/spf13/cobra"
)

func ListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List daily CLI limits and usage per country",
		Long: `List the daily CLI limit, current usage and tier of every country.

With --record a snapshot of every row is saved to the local history,
viewable with "dialctl quota history".

Examples:
  dialctl quota list
  dialctl quota list --record
  dialctl quota list -o json`,
		Args:         cobra.NoArgs,
		RunE:         runList,
		SilenceUsage: true,
	}

	cmd.Flags().Bool("record", false, "Save a snapshot of the quotas to the local history")
	cmdutil.AddOutputFlag(cmd)

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	output, err := cmdutil.OutputFormat(cmd)
	if err != nil {
		return err
	}
	record, _ := cmd.Flags().GetBool("record")

	sess, err := cmdutil.NewSession(cmd)
	if err != nil {
		return err
	}
	engine, err := loadEngine(cmd.Context(), cmd, sess)
	if err != nil {
		return err
	}
	quotas := engine.Quotas()

	if record {
		repo, err := quotastore.Open()
		if err != nil {
			return err
		}
		defer repo.Close()
		if err := repo.SaveAll(quotastore.FromQuotas(sess.SourceName, quotas, time.Now())); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Recorded %d quota snapshot(s).\n", len(quotas))
	}

	if output == cmdutil.OutputJSON {
		views := make([]quotaView, len(quotas))
		for i, q := range quotas {
			views[i] = newQuotaView(q)
		}
		return cmdutil.PrintJSON(cmd, views)
	}

	if len(quotas) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No CLI quotas configured.")
		return nil
	}
	printQuotas(cmd.OutOrStdout(), quotas)
	return nil
}
