package quota

import (
	"fmt"
	"text/tabwriter"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"

	"github.com/spf13/cobra"
)

func SummaryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show aggregate CLI quota counts",
		Long: `Show how many countries are capped or unlimited, total usage today and
how many countries are in the critical tier.

Examples:
  dialctl quota summary
  dialctl quota summary -o json`,
		Args:         cobra.NoArgs,
		RunE:         runSummary,
		SilenceUsage: true,
	}

	cmdutil.AddOutputFlag(cmd)

	return cmd
}

func runSummary(cmd *cobra.Command, args []string) error {
	output, err := cmdutil.OutputFormat(cmd)
	if err != nil {
		return err
	}
	sess, err := cmdutil.NewSession(cmd)
	if err != nil {
		return err
	}
	engine, err := loadEngine(cmd.Context(), cmd, sess)
	if err != nil {
		return err
	}

	s := engine.Summary()
	if output == cmdutil.OutputJSON {
		return cmdutil.PrintJSON(cmd, s)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Limited countries:\t%d\n", s.Limited)
	fmt.Fprintf(w, "Unlimited countries:\t%d\n", s.Unlimited)
	fmt.Fprintf(w, "CLIs used today:\t%d\n", s.TotalUsed)
	fmt.Fprintf(w, "Critical countries:\t%d\n", s.Critical)
	return w.Flush()
}
