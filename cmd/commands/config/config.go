package config

import (
	"nathanbeddoewebdev/dialctl/internal/config"

	"github.com/spf13/cobra"
)

// NewCommand returns the "config" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage dialctl configuration",
		Long: "View and modify persistent dialctl settings.\n\n" +
			"Configuration is stored at ~/.config/dialctl/config.json. The\n" +
			"DIALCTL_SOURCE, DIALCTL_API_URL, DIALCTL_STREAM_URL and\n" +
			"DIALCTL_LOG_LEVEL environment variables override stored values.\n\n" +
			config.KeysHelp(),
	}

	cmd.AddCommand(SetCommand())
	cmd.AddCommand(GetCommand())
	cmd.AddCommand(UnsetCommand())

	return cmd
}
