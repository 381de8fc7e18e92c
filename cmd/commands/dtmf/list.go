package dtmf

import (
	"nathanbeddoewebdev/dialctl/cmd/cmdutil"

	"github.com/spf13/cobra"
)

func ListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "list",
		Short:        "List the effective DTMF menu of every country",
		Args:         cobra.NoArgs,
		RunE:         runList,
		SilenceUsage: true,
	}

	cmdutil.AddOutputFlag(cmd)
	cmdutil.AddRefreshFlag(cmd)

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	output, err := cmdutil.OutputFormat(cmd)
	if err != nil {
		return err
	}

	sess, err := cmdutil.NewSession(cmd)
	if err != nil {
		return err
	}
	reg, err := loadRegistry(cmd, sess)
	if err != nil {
		return err
	}

	views := viewsFor(reg, reg.Countries())
	if output == cmdutil.OutputJSON {
		return cmdutil.PrintJSON(cmd, views)
	}
	printTable(cmd.OutOrStdout(), views)
	return nil
}
