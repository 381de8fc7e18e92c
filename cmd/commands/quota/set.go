package quota

import (
	"fmt"
	"strconv"
	"strings"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/auditlog"
	"nathanbeddoewebdev/dialctl/internal/perf/quota"
	"nathanbeddoewebdev/dialctl/internal/util"

	"github.com/spf13/cobra"
)

func SetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <country> <limit>",
		Short: "Set a country's daily CLI limit",
		Long: `Set the daily CLI limit of a country. A limit of 0 removes the cap.

Examples:
  dialctl quota set usa 1500
  dialctl quota set colombia 0`,
		Args:         cobra.ExactArgs(2),
		Annotations:  cmdutil.Audited(),
		RunE:         runSet,
		SilenceUsage: true,
	}

	return cmd
}

func runSet(cmd *cobra.Command, args []string) error {
	country := util.NormalizeKey(args[0])
	limit, err := strconv.Atoi(strings.TrimSpace(args[1]))
	if err != nil {
		return fmt.Errorf("limit must be a whole number, got %q", args[1])
	}

	sess, err := cmdutil.NewSession(cmd)
	if err != nil {
		return err
	}
	cmdutil.Tag(cmd, auditlog.Metadata{Op: "quota.set", Target: country})

	engine := quota.New(sess.Source, quota.WithLogger(sess.Log))
	err = cmdutil.WithSpinner(cmd, "Updating CLI limit...", func() error {
		return engine.SetLimit(cmd.Context(), country, limit)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Daily CLI limit for %s set to %s\n", strings.ToUpper(country), formatLimit(limit))
	return nil
}
