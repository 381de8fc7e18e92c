package auth

import (
	"github.com/spf13/cobra"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the performance API token",
		Long: `Manage the bearer token used to call the performance API.

Tokens are stored in the OS keychain under the "dialctl" service. The
default account is "api"; pass --account to keep tokens for several
backends side by side.`,
	}

	cmd.AddCommand(LoginCommand())
	cmd.AddCommand(LogoutCommand())
	cmd.AddCommand(StatusCommand())

	return cmd
}

func addAccountFlag(cmd *cobra.Command) {
	cmd.Flags().String("account", "api", "Keychain account holding the token")
}
