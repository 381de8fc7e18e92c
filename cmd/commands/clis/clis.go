package clis

import (
	"github.com/spf13/cobra"
)

// NewCommand returns the "clis" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clis",
		Short: "Browse the caller-ID number pool",
		Long: `Browse the caller-ID numbers in the rotation pool.

Each number's status is derived from its usage against its country's daily
limit, unless the provider has marked it blocked or inactive.`,
	}

	cmd.AddCommand(ListCommand())
	cmd.AddCommand(StatsCommand())

	return cmd
}
