package auth

import (
	"fmt"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/services/auth"
	"nathanbeddoewebdev/dialctl/internal/tui"

	"github.com/spf13/cobra"
)

func StatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether a performance API token is stored",
		Long: `Show whether a performance API token is stored in the keychain.

Examples:
  dialctl auth status
  dialctl auth status -o json`,
		Args:         cobra.NoArgs,
		RunE:         runStatus,
		SilenceUsage: true,
	}

	addAccountFlag(cmd)
	cmdutil.AddOutputFlag(cmd)

	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	output, err := cmdutil.OutputFormat(cmd)
	if err != nil {
		return err
	}
	account, _ := cmd.Flags().GetString("account")
	accounts := []string{auth.NormalizeAccount(account)}

	cfg, err := cmdutil.LoadConfig(cmd)
	if err != nil {
		return err
	}
	store := cmdutil.Store()

	if output == cmdutil.OutputTable && cmdutil.Interactive() {
		if err := tui.RunAuthStatus(store, cfg.APIURL, accounts); err != nil {
			return fmt.Errorf("auth status failed: %w", err)
		}
		return nil
	}

	statuses := tui.CheckCredentials(store, accounts)
	if output == cmdutil.OutputJSON {
		return cmdutil.PrintJSON(cmd, statuses)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "API: %s\n", cfg.APIURL)
	for _, st := range statuses {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", st.Account, st.Describe())
	}
	return nil
}
