package quota

import (
	"fmt"
	"strings"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/quotastore"

	"github.com/spf13/cobra"
)

func PruneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete recorded quota snapshots older than a duration",
		Long: `Delete quota snapshots older than a duration.

Examples:
  dialctl quota prune --older-than 90d`,
		Args:         cobra.NoArgs,
		RunE:         runPrune,
		SilenceUsage: true,
	}

	cmd.Flags().String("older-than", "", "Remove snapshots older than this duration (e.g. 90d, 72h)")

	return cmd
}

func runPrune(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetString("older-than")
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("--older-than is required")
	}
	age, err := cmdutil.ParseAge(raw)
	if err != nil {
		return err
	}

	repo, err := quotastore.Open()
	if err != nil {
		return err
	}
	defer repo.Close()

	removed, err := repo.Prune(age)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d snapshot(s).\n", removed)
	return nil
}
