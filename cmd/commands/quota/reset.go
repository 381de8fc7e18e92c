package quota

import (
	"fmt"
	"strings"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/auditlog"
	"nathanbeddoewebdev/dialctl/internal/perf/quota"
	"nathanbeddoewebdev/dialctl/internal/util"

	"github.com/spf13/cobra"
)

func ResetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset CLI usage counters",
		Long: `Reset the CLI usage counter of one country, or of every country when
--country is omitted.

Examples:
  dialctl quota reset --country mexico
  dialctl quota reset --yes`,
		Args:         cobra.NoArgs,
		Annotations:  cmdutil.Audited(),
		RunE:         runReset,
		SilenceUsage: true,
	}

	cmd.Flags().String("country", "", "Country to reset (default: all countries)")
	cmdutil.AddYesFlag(cmd)

	return cmd
}

func runReset(cmd *cobra.Command, args []string) error {
	country, _ := cmd.Flags().GetString("country")
	country = util.NormalizeKey(country)

	sess, err := cmdutil.NewSession(cmd)
	if err != nil {
		return err
	}
	target := country
	if target == "" {
		target = "all"
	}
	cmdutil.Tag(cmd, auditlog.Metadata{Op: "quota.reset", Target: target})

	engine := quota.New(sess.Source, quota.WithLogger(sess.Log))
	confirm := cmdutil.Confirm(cmd)
	if err := engine.ResetUsage(cmd.Context(), country, confirm); err != nil {
		return err
	}
	sess.Invalidate(cmdutil.ResourceCLIs)

	if country == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "CLI usage reset for all countries.")
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "CLI usage reset for %s.\n", strings.ToUpper(country))
	}
	return nil
}
