package config

import (
	"fmt"
	"slices"
	"strings"

	"nathanbeddoewebdev/dialctl/internal/config"
	"nathanbeddoewebdev/dialctl/internal/perf/providers"
	"nathanbeddoewebdev/dialctl/internal/util"

	"github.com/spf13/cobra"
)

// SetCommand returns the "config set" command.
func SetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: "Set a persistent configuration value.\n\n" +
			config.KeysHelp() +
			"\nExamples:\n" +
			"  dialctl config set source static\n" +
			"  dialctl config set api-url https://perf.example.com\n" +
			"  dialctl config set cps-ceiling 50",
		Args: cobra.ExactArgs(2),
		Run:  runSet,
	}

	return cmd
}

// validators maps key names to checks that need more than the key's own
// Validate, such as the live provider registry.
var validators = map[string]func(value string) error{
	"source": validateSource,
}

// verbatimKeys are stored exactly as given; every other value is
// normalized to lower case.
var verbatimKeys = []string{"api-url", "stream-url", "stream-restricted-hosts"}

func runSet(cmd *cobra.Command, args []string) {
	key := util.NormalizeKey(args[0])
	value := strings.TrimSpace(args[1])

	spec := config.Lookup(key)
	if spec == nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: unknown configuration key %q\n", args[0])
		fmt.Fprintf(cmd.ErrOrStderr(), "Valid keys: %s\n", strings.Join(config.KeyNames(), ", "))
		return
	}

	if !slices.Contains(verbatimKeys, spec.Name) {
		value = util.NormalizeKey(value)
	}

	if spec.Validate != nil {
		if err := spec.Validate(value); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s: %v\n", spec.Name, err)
			return
		}
	}
	if validate, ok := validators[spec.Name]; ok {
		if err := validate(value); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			return
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return
	}

	spec.Set(cfg, value)
	if err := cfg.Save(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s set to %q\n", spec.Name, value)
}

// validateSource checks that the given name is a registered source.
func validateSource(name string) error {
	known := providers.List()
	if slices.Contains(known, name) {
		return nil
	}
	return fmt.Errorf("unknown source %q (registered: %s)", name, strings.Join(known, ", "))
}
