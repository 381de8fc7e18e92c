package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/cmd/commands/audit"
	"nathanbeddoewebdev/dialctl/cmd/commands/auth"
	"nathanbeddoewebdev/dialctl/cmd/commands/cache"
	"nathanbeddoewebdev/dialctl/cmd/commands/clis"
	cfgcmd "nathanbeddoewebdev/dialctl/cmd/commands/config"
	"nathanbeddoewebdev/dialctl/cmd/commands/dtmf"
	"nathanbeddoewebdev/dialctl/cmd/commands/loadtest"
	"nathanbeddoewebdev/dialctl/cmd/commands/monitor"
	"nathanbeddoewebdev/dialctl/cmd/commands/quota"
	"nathanbeddoewebdev/dialctl/internal/auditlog"
	"nathanbeddoewebdev/dialctl/internal/logging"
	"nathanbeddoewebdev/dialctl/internal/perf/providers"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
func rootCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "dialctl",
		Short: "An operator console for a predictive dialer's performance API",
		Long: `dialctl is an operator console for a predictive dialer. It watches live
call metrics, runs load tests, manages per-country caller-ID quotas and
DTMF menus, and keeps a local history of runs and operator changes.

Data comes from the dialer's REST API (source "api") or from built-in
demo data (source "static").

Quick start:
  dialctl auth login               # Store your API token
  dialctl monitor                  # Live dashboard
  dialctl quota list               # CLI usage per country
  dialctl loadtest start --cps 20 --countries usa --wait`,
		PersistentPreRunE: setupLogging,
		SilenceErrors:     true,
	}

	cmd.PersistentFlags().String("source", "", "Data source: api or static (overrides config)")
	cmd.PersistentFlags().String("api-url", "", "Performance API base URL (overrides config)")

	cmd.AddCommand(auth.NewCommand())
	cmd.AddCommand(cfgcmd.NewCommand())
	cmd.AddCommand(audit.NewCommand())
	cmd.AddCommand(cache.NewCommand())
	cmd.AddCommand(clis.NewCommand())
	cmd.AddCommand(dtmf.NewCommand())
	cmd.AddCommand(loadtest.NewCommand())
	cmd.AddCommand(monitor.NewCommand())
	cmd.AddCommand(quota.NewCommand())

	return cmd
}

func setupLogging(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig(cmd)
	if err != nil {
		return err
	}
	_, err = logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: logging.OutputStderr,
	})
	return err
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	providers.RegisterDefaults()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if code != 0 {
		os.Exit(code)
	}
}

// run executes args and returns the process exit code. Audited commands
// are written to the audit log whatever their outcome.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	start := time.Now()
	cmd, err := root.ExecuteContextC(ctx)
	cancelled := cmdutil.Cancelled(err)

	if cmdutil.IsAudited(cmd) {
		recordAudit(cmd, args, start, err, cancelled)
	}

	switch {
	case err == nil:
		return 0
	case cancelled:
		fmt.Fprintln(stderr, "Cancelled.")
		return 0
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

func recordAudit(cmd *cobra.Command, args []string, start time.Time, err error, cancelled bool) {
	log := logging.Component("audit")

	repo, openErr := auditlog.Open()
	if openErr != nil {
		log.Warn().Err(openErr).Msg("audit log unavailable")
		return
	}
	defer repo.Close()

	entry := auditlog.NewEntry(cmd.Context(), cmd.CommandPath(), args, start, err, cancelled)
	if saveErr := repo.Save(entry); saveErr != nil {
		log.Warn().Err(saveErr).Str("command", entry.Command).Msg("failed to write audit entry")
	}
}
