package dtmf

import (
	"fmt"
	"strings"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/auditlog"
	"nathanbeddoewebdev/dialctl/internal/util"

	"github.com/spf13/cobra"
)

func ResetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset <country>",
		Short: "Remove a country's DTMF override",
		Long: `Remove the saved DTMF override of a country so its built-in default
applies again.

Examples:
  dialctl dtmf reset usa
  dialctl dtmf reset mexico --yes`,
		Args:         cobra.ExactArgs(1),
		Annotations:  cmdutil.Audited(),
		RunE:         runReset,
		SilenceUsage: true,
	}

	cmdutil.AddYesFlag(cmd)

	return cmd
}

func runReset(cmd *cobra.Command, args []string) error {
	country := util.NormalizeKey(args[0])

	sess, err := cmdutil.NewSession(cmd)
	if err != nil {
		return err
	}
	cmdutil.Tag(cmd, auditlog.Metadata{Op: "dtmf.reset", Target: country})

	reg, err := loadRegistry(cmd, sess)
	if err != nil {
		return err
	}
	if err := reg.ResetToDefault(cmd.Context(), country, cmdutil.Confirm(cmd)); err != nil {
		return err
	}
	sess.Invalidate(cmdutil.ResourceDtmf)

	fmt.Fprintf(cmd.OutOrStdout(), "DTMF menu for %s reset to default.\n", strings.ToUpper(country))
	return nil
}
