package dtmf

import (
	"fmt"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/util"

	"github.com/spf13/cobra"
)

func ShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "show <country>",
		Short:        "Show the effective DTMF menu of a country",
		Args:         cobra.ExactArgs(1),
		RunE:         runShow,
		SilenceUsage: true,
	}

	cmdutil.AddOutputFlag(cmd)
	cmdutil.AddRefreshFlag(cmd)

	return cmd
}

func runShow(cmd *cobra.Command, args []string) error {
	output, err := cmdutil.OutputFormat(cmd)
	if err != nil {
		return err
	}
	country := util.NormalizeKey(args[0])

	sess, err := cmdutil.NewSession(cmd)
	if err != nil {
		return err
	}
	reg, err := loadRegistry(cmd, sess)
	if err != nil {
		return err
	}

	views := viewsFor(reg, []string{country})
	if len(views) == 0 {
		return fmt.Errorf("no DTMF menu for %q", country)
	}
	if output == cmdutil.OutputJSON {
		return cmdutil.PrintJSON(cmd, views[0])
	}
	printDetail(cmd.OutOrStdout(), views[0])
	return nil
}
