package auth

import (
	"errors"
	"fmt"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/services/auth"

	"github.com/spf13/cobra"
)

func LogoutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "logout",
		Short:        "Remove the stored performance API token",
		Args:         cobra.NoArgs,
		RunE:         runLogout,
		SilenceUsage: true,
	}

	addAccountFlag(cmd)

	return cmd
}

func runLogout(cmd *cobra.Command, args []string) error {
	account, _ := cmd.Flags().GetString("account")
	account = auth.NormalizeAccount(account)

	err := cmdutil.Store().DeleteToken(account)
	switch {
	case errors.Is(err, auth.ErrTokenNotFound):
		fmt.Fprintf(cmd.OutOrStdout(), "No token stored for account %s\n", account)
		return nil
	case err != nil:
		return fmt.Errorf("failed to remove token: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed token for account %s\n", account)
	return nil
}
