package audit

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/auditlog"

	"github.com/spf13/cobra"
)

func ListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent audit entries",
		Long: `List recent audit entries stored locally.

Examples:
  dialctl audit list
  dialctl audit list --limit 50
  dialctl audit list --target usa
  dialctl audit list -o json`,
		RunE:         runList,
		SilenceUsage: true,
	}

	cmd.Flags().Int("limit", 25, "Number of entries to display")
	cmd.Flags().String("target", "", "Filter by target (country or load-test run ID)")
	cmdutil.AddOutputFlag(cmd)

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("limit must be greater than 0")
	}

	target, _ := cmd.Flags().GetString("target")
	target = strings.TrimSpace(target)
	output, err := cmdutil.OutputFormat(cmd)
	if err != nil {
		return err
	}

	repo, err := auditlog.Open()
	if err != nil {
		return err
	}
	defer repo.Close()

	var entries []auditlog.AuditEntry
	if target != "" {
		entries, err = repo.ListByTarget(target, limit)
	} else {
		entries, err = repo.List(limit)
	}
	if err != nil {
		return err
	}

	if output == cmdutil.OutputJSON {
		if entries == nil {
			entries = []auditlog.AuditEntry{}
		}
		return cmdutil.PrintJSON(cmd, entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No audit entries found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tCOMMAND\tSOURCE\tTARGET\tOUTCOME\tDURATION\tDETAIL")
	fmt.Fprintln(w, "----\t-------\t------\t------\t-------\t--------\t------")
	for _, entry := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			entry.Timestamp.Local().Format("2006-01-02 15:04:05"),
			entry.Command,
			dash(entry.Source),
			dash(entry.Target),
			entry.Outcome,
			formatDuration(entry.DurationMs),
			dash(entry.Detail),
		)
	}
	w.Flush()
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	d := time.Duration(ms) * time.Millisecond
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}
