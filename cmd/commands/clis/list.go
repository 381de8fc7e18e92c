package clis

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/perf/catalog"
	"nathanbeddoewebdev/dialctl/internal/perf/domain"

	"github.com/spf13/cobra"
)

var statuses = []domain.CliStatus{
	domain.CliStatusActive,
	domain.CliStatusHighUsage,
	domain.CliStatusLimitReached,
	domain.CliStatusBlocked,
	domain.CliStatusInactive,
}

func ListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List caller-ID numbers",
		Long: `List caller-ID numbers with optional filters, sorting and paging.

Sort keys: ` + strings.Join(catalog.SortKeys, ", ") + `

Examples:
  dialctl clis list --country usa
  dialctl clis list --status high_usage --sort usage_count --desc
  dialctl clis list --page 2 --per-page 5 -o json`,
		Args:         cobra.NoArgs,
		RunE:         runList,
		SilenceUsage: true,
	}

	cmd.Flags().String("country", "", "Only numbers in this country")
	cmd.Flags().String("provider", "", "Only numbers from this provider")
	cmd.Flags().String("status", "", "Only numbers with this status")
	cmd.Flags().String("sort", catalog.SortID, "Sort key")
	cmd.Flags().Bool("desc", false, "Sort descending")
	cmd.Flags().Int("page", 1, "Page number")
	cmd.Flags().Int("per-page", catalog.DefaultPerPage, "Numbers per page")
	cmdutil.AddOutputFlag(cmd)
	cmdutil.AddRefreshFlag(cmd)

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	output, err := cmdutil.OutputFormat(cmd)
	if err != nil {
		return err
	}

	q, err := queryFromFlags(cmd)
	if err != nil {
		return err
	}

	sess, err := cmdutil.NewSession(cmd)
	if err != nil {
		return err
	}
	cat, err := loadCatalog(cmd, sess)
	if err != nil {
		return err
	}

	page, err := cat.List(q)
	if err != nil {
		return err
	}

	if output == cmdutil.OutputJSON {
		if page.Items == nil {
			page.Items = []domain.CliRecord{}
		}
		return cmdutil.PrintJSON(cmd, page)
	}

	if page.Total == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No CLIs match the given filters.")
		return nil
	}
	printRecords(cmd.OutOrStdout(), page.Items)
	fmt.Fprintf(cmd.OutOrStdout(), "\nPage %d of %d (%d CLIs)\n", page.Page, max(page.TotalPages, 1), page.Total)
	return nil
}

func queryFromFlags(cmd *cobra.Command) (catalog.Query, error) {
	f := cmd.Flags()
	var q catalog.Query
	q.Country, _ = f.GetString("country")
	q.Provider, _ = f.GetString("provider")
	q.SortBy, _ = f.GetString("sort")
	q.Desc, _ = f.GetBool("desc")
	q.Page, _ = f.GetInt("page")
	q.PerPage, _ = f.GetInt("per-page")

	status, _ := f.GetString("status")
	if status != "" {
		q.Status = domain.CliStatus(strings.ToLower(strings.TrimSpace(status)))
		if !slices.Contains(statuses, q.Status) {
			return q, fmt.Errorf("unknown status %q", status)
		}
	}
	if q.Page < 1 {
		return q, fmt.Errorf("--page must be at least 1")
	}
	if q.PerPage < 1 {
		return q, fmt.Errorf("--per-page must be at least 1")
	}
	return q, nil
}

func printRecords(w io.Writer, records []domain.CliRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNUMBER\tCOUNTRY\tPROVIDER\tUSAGE\tSUCCESS\tSTATUS\tLAST USED")
	fmt.Fprintln(tw, "--\t------\t-------\t--------\t-----\t-------\t------\t---------")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%.0f%%\t%s\t%s\n",
			r.ID,
			r.PhoneNumber,
			strings.ToUpper(r.Country),
			r.Provider,
			r.UsageCount,
			r.SuccessRate*100,
			r.Status,
			formatLastUsed(r.LastUsed),
		)
	}
	tw.Flush()
}

func formatLastUsed(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}
