package dtmf

import (
	"errors"
	"fmt"
	"strings"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/auditlog"
	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/tui"
	"nathanbeddoewebdev/dialctl/internal/util"

	"github.com/spf13/cobra"
)

var editFields = []string{"key", "message", "timeout", "language", "instructions"}

func SetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set [country]",
		Short: "Save a DTMF menu override",
		Long: `Save a DTMF menu override for a country. Flags are applied over the
country's current menu. Without flags an interactive editor is opened.

Examples:
  dialctl dtmf set usa --key 2
  dialctl dtmf set mexico --timeout 15 --message "Presione 2"
  dialctl dtmf set`,
		Args:         cobra.MaximumNArgs(1),
		Annotations:  cmdutil.Audited(),
		RunE:         runSet,
		SilenceUsage: true,
	}

	cmd.Flags().String("key", "", "Digit the caller presses (0-9)")
	cmd.Flags().String("message", "", "Prompt played to the caller")
	cmd.Flags().Int("timeout", 0, "Seconds to wait for a key press")
	cmd.Flags().String("language", "", "Prompt language, e.g. en-US")
	cmd.Flags().String("instructions", "", "Notes for the agent")

	return cmd
}

func runSet(cmd *cobra.Command, args []string) error {
	sess, err := cmdutil.NewSession(cmd)
	if err != nil {
		return err
	}
	reg, err := loadRegistry(cmd, sess)
	if err != nil {
		return err
	}

	var country string
	if len(args) == 1 {
		country = util.NormalizeKey(args[0])
	}

	changed := false
	for _, name := range editFields {
		changed = changed || cmd.Flags().Changed(name)
	}

	if !changed && !cmdutil.Interactive() {
		return fmt.Errorf("no changes given: pass at least one of --%s", strings.Join(editFields, ", --"))
	}
	if country == "" {
		if !cmdutil.Interactive() {
			return fmt.Errorf("country is required")
		}
		country, err = tui.SelectDtmfCountry(reg.Countries(), reg.IsCustomized)
		if err != nil {
			return aborted(err)
		}
	}
	cmdutil.Tag(cmd, auditlog.Metadata{Op: "dtmf.save", Target: country})

	cfg, ok := reg.Effective(country)
	if !ok {
		cfg = domain.DtmfCountryConfig{Country: country}
	}

	if changed {
		cfg = applyFlags(cmd, cfg)
	} else {
		def, _ := reg.Default(country)
		cfg, err = tui.DtmfEditForm(cfg, def)
		if err != nil {
			return aborted(err)
		}
	}

	err = cmdutil.WithSpinner(cmd, "Saving DTMF menu...", func() error {
		return reg.Save(cmd.Context(), cfg)
	})
	if err != nil {
		return err
	}
	sess.Invalidate(cmdutil.ResourceDtmf)

	fmt.Fprintf(cmd.OutOrStdout(), "Saved DTMF menu for %s (key %s, %ds timeout)\n",
		strings.ToUpper(country), cfg.DtmfKey, cfg.MenuTimeout)
	return nil
}

func applyFlags(cmd *cobra.Command, cfg domain.DtmfCountryConfig) domain.DtmfCountryConfig {
	f := cmd.Flags()
	if f.Changed("key") {
		cfg.DtmfKey, _ = f.GetString("key")
		cfg.DtmfKey = strings.TrimSpace(cfg.DtmfKey)
	}
	if f.Changed("message") {
		cfg.Message, _ = f.GetString("message")
	}
	if f.Changed("timeout") {
		cfg.MenuTimeout, _ = f.GetInt("timeout")
	}
	if f.Changed("language") {
		cfg.Language, _ = f.GetString("language")
	}
	if f.Changed("instructions") {
		cfg.Instructions, _ = f.GetString("instructions")
	}
	return cfg
}

// aborted maps leaving an editor to a cancellation.
func aborted(err error) error {
	if errors.Is(err, tui.ErrDtmfEditAborted) {
		return fmt.Errorf("save DTMF config: %w", domain.ErrCancelled)
	}
	return err
}
