package loadtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/auditlog"
	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/perf/loadtest"

	"github.com/spf13/cobra"
)

// stopTimeout bounds the stop request sent when a waiting start is
// interrupted.
const stopTimeout = 30 * time.Second

// resultsPoll is how often an interrupted run checks for the results the
// controller fetches after its stop grace.
const resultsPoll = 100 * time.Millisecond

// stopGrace is passed to the controller; tests shorten it.
var stopGrace = loadtest.StopGrace

func StartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a synthetic load test",
		Long: `Start a synthetic load test on the dialer's test runner.

Target CPS must not exceed the cps-ceiling config value (default 100).
With --wait the command polls the runner until the test ends and prints
the results; Ctrl+C stops the test.

Examples:
  dialctl loadtest start --cps 20 --duration 5 --countries usa,canada
  dialctl loadtest start --cps 50 --duration 10 --countries mexico --clis 2000 --wait`,
		Args:         cobra.NoArgs,
		Annotations:  cmdutil.Audited(),
		RunE:         runStart,
		SilenceUsage: true,
	}

	cmd.Flags().Float64("cps", 10, "Target calls per second")
	cmd.Flags().Int("duration", 5, "Test duration in minutes")
	cmd.Flags().StringSlice("countries", nil, "Countries to dial (comma separated)")
	cmd.Flags().Int("clis", 100, "Number of caller-ID numbers to rotate")
	cmd.Flags().Bool("wait", false, "Poll until the test ends and print the results")
	cmd.Flags().Duration("poll-interval", loadtest.PollInterval, "Delay between status polls with --wait")
	_ = cmd.Flags().MarkHidden("poll-interval")

	return cmd
}

func runStart(cmd *cobra.Command, args []string) error {
	cps, _ := cmd.Flags().GetFloat64("cps")
	duration, _ := cmd.Flags().GetInt("duration")
	countries, _ := cmd.Flags().GetStringSlice("countries")
	clis, _ := cmd.Flags().GetInt("clis")
	wait, _ := cmd.Flags().GetBool("wait")
	interval, _ := cmd.Flags().GetDuration("poll-interval")

	cfg := domain.LoadTestConfig{
		TargetCPS:       cps,
		DurationMinutes: duration,
		CountriesToTest: countries,
		NumberOfCLIs:    clis,
	}

	sess, err := cmdutil.NewSession(cmd)
	if err != nil {
		return err
	}
	cmdutil.Tag(cmd, auditlog.Metadata{Op: "loadtest.start", Target: strings.Join(loadtest.Normalize(cfg).CountriesToTest, ",")})

	var recorder loadtest.RunRecorder
	runs, err := openRuns()
	if err != nil {
		sess.Log.Warn().Err(err).Msg("run history unavailable")
	} else {
		defer runs.Close()
		recorder = runs
	}

	ctrl := newController(sess, recorder, loadtest.WithManualPolling(), loadtest.WithStopGrace(stopGrace))
	defer ctrl.Close()

	if err := ctrl.Validate(cfg); err != nil {
		return err
	}

	err = cmdutil.WithSpinner(cmd, "Starting load test...", func() error {
		return ctrl.Start(cmd.Context(), cfg)
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Load test started on %s\n", sess.Source.GetDisplayName())
	printConfig(out, ctrl.Config())
	if id := ctrl.RunID(); id != "" {
		cmdutil.Tag(cmd, auditlog.Metadata{Target: id})
		fmt.Fprintf(out, "  Run ID:      %s\n", id)
	}

	if !wait {
		fmt.Fprintln(out, "\nFollow progress with: dialctl loadtest status")
		return nil
	}
	fmt.Fprintln(out)
	return waitForRun(cmd, ctrl, interval)
}

// waitForRun polls ctrl until the run ends and prints its results. When
// the command context is cancelled the test is stopped first.
func waitForRun(cmd *cobra.Command, ctrl *loadtest.Controller, interval time.Duration) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastPoint time.Time
	for !ctrl.State().Terminal() {
		select {
		case <-ctx.Done():
			return interruptRun(cmd, ctrl)
		case <-ticker.C:
		}

		if err := ctrl.Poll(ctx); err != nil {
			if ctx.Err() == nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "poll failed: %v\n", err)
			}
			continue
		}
		if series := ctrl.Series(); len(series) > 0 {
			if p := series[len(series)-1]; p.Timestamp.After(lastPoint) {
				lastPoint = p.Timestamp
				fmt.Fprintln(out, progressLine(p))
			}
		}
	}

	res := ctrl.Results()
	if res == nil {
		if err := ctrl.LastError(); err != nil {
			return fmt.Errorf("get load test results: %w", err)
		}
		return fmt.Errorf("get load test results: %w", domain.ErrNoResults)
	}
	fmt.Fprintf(out, "\nLoad test %s.\n", ctrl.State())
	printResult(out, res)
	return nil
}

func interruptRun(cmd *cobra.Command, ctrl *loadtest.Controller) error {
	fmt.Fprintln(cmd.ErrOrStderr(), "Interrupted; stopping load test...")
	cmdutil.Tag(cmd, auditlog.Metadata{Op: "loadtest.stop"})

	ctx, cancel := context.WithTimeout(context.Background(), stopGrace+stopTimeout)
	defer cancel()

	stopCtx, stopCancel := context.WithTimeout(ctx, stopTimeout)
	err := ctrl.Stop(stopCtx)
	stopCancel()
	if err != nil && !errors.Is(err, loadtest.ErrNotRunning) {
		return err
	}

	// The controller fetches the results itself once the stop grace passes.
	res := awaitResults(ctx, ctrl)
	if res == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Load test stopped; results are not available yet.")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "\nLoad test stopped.")
	printResult(cmd.OutOrStdout(), res)
	return nil
}

// awaitResults waits for ctrl to hold results, returning nil when ctx
// ends first.
func awaitResults(ctx context.Context, ctrl *loadtest.Controller) *domain.LoadTestResult {
	ticker := time.NewTicker(resultsPoll)
	defer ticker.Stop()
	for {
		if res := ctrl.Results(); res != nil {
			return res
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
