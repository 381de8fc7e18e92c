package audit

import "github.com/spf13/cobra"

// NewCommand returns the "audit" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "View and manage the operator audit trail",
		Long: "View the local record of quota, DTMF and load-test changes made\n" +
			"with dialctl, and prune old entries.\n\n" +
			"Audit history is stored locally in ~/.config/dialctl/dialctl.db.",
		SilenceUsage: true,
	}

	cmd.AddCommand(ListCommand())
	cmd.AddCommand(PruneCommand())

	return cmd
}
