package loadtest

import (
	"fmt"
	"strings"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/runstore"

	"github.com/spf13/cobra"
)

func RunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List load tests started from this machine",
		Long: `List load tests recorded in the local run history.

Examples:
  dialctl loadtest runs
  dialctl loadtest runs --active
  dialctl loadtest runs --limit 50 -o json`,
		Args:         cobra.NoArgs,
		RunE:         runRuns,
		SilenceUsage: true,
	}

	cmd.Flags().Int("limit", 20, "Number of runs to display")
	cmd.Flags().Bool("active", false, "Only show runs that have not finished")
	cmdutil.AddOutputFlag(cmd)

	cmd.AddCommand(runsPruneCommand())

	return cmd
}

func runRuns(cmd *cobra.Command, args []string) error {
	output, err := cmdutil.OutputFormat(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("limit must be greater than 0")
	}
	active, _ := cmd.Flags().GetBool("active")

	repo, err := openRuns()
	if err != nil {
		return err
	}
	defer repo.Close()

	var runs []runstore.Run
	if active {
		runs, err = repo.ListActive()
	} else {
		runs, err = repo.ListRecent(limit)
	}
	if err != nil {
		return err
	}

	if output == cmdutil.OutputJSON {
		if runs == nil {
			runs = []runstore.Run{}
		}
		return cmdutil.PrintJSON(cmd, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No load-test runs recorded.")
		return nil
	}
	printRuns(cmd.OutOrStdout(), runs)
	return nil
}

func runsPruneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished runs older than a duration",
		Long: `Delete finished runs older than a duration. Active runs are kept.

Examples:
  dialctl loadtest runs prune --older-than 30d`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("older-than")
			if strings.TrimSpace(raw) == "" {
				return fmt.Errorf("--older-than is required")
			}
			age, err := cmdutil.ParseAge(raw)
			if err != nil {
				return err
			}

			repo, err := openRuns()
			if err != nil {
				return err
			}
			defer repo.Close()

			removed, err := repo.DeleteOlderThan(age)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s).\n", removed)
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().String("older-than", "", "Remove runs older than this duration (e.g. 30d, 72h)")

	return cmd
}

// findRun resolves a full run ID or a unique prefix of one.
func findRun(id string) (*runstore.Run, error) {
	repo, err := openRuns()
	if err != nil {
		return nil, err
	}
	defer repo.Close()

	if run, err := repo.Get(id); err != nil || run != nil {
		return run, err
	}

	recent, err := repo.ListRecent(500)
	if err != nil {
		return nil, err
	}
	var match *runstore.Run
	for i := range recent {
		if strings.HasPrefix(recent[i].ID, id) {
			if match != nil {
				return nil, fmt.Errorf("run ID prefix %q is ambiguous", id)
			}
			match = &recent[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("run %q not found", id)
	}
	return match, nil
}
