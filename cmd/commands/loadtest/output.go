package loadtest

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/runstore"
)

func printConfig(w io.Writer, cfg domain.LoadTestConfig) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  Target CPS:\t%g\n", cfg.TargetCPS)
	fmt.Fprintf(tw, "  Duration:\t%d min\n", cfg.DurationMinutes)
	fmt.Fprintf(tw, "  Countries:\t%s\n", strings.Join(cfg.CountriesToTest, ", "))
	fmt.Fprintf(tw, "  CLIs:\t%d\n", cfg.NumberOfCLIs)
	tw.Flush()
}

func printStatus(w io.Writer, st *domain.LoadTestStatus) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	running := "no"
	if st.IsRunning {
		running = "yes"
	}
	fmt.Fprintf(tw, "Running:\t%s\n", running)
	if st.IsRunning {
		fmt.Fprintf(tw, "Current CPS:\t%.1f\n", st.CurrentCPS)
		fmt.Fprintf(tw, "Concurrent calls:\t%d\n", st.ConcurrentCalls)
		fmt.Fprintf(tw, "Success rate:\t%.1f%%\n", st.SuccessRate*100)
		fmt.Fprintf(tw, "Errors:\t%d\n", st.Errors)
	}
	tw.Flush()
}

func printResult(w io.Writer, res *domain.LoadTestResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Average CPS:\t%.2f\n", res.AvgCPS)
	fmt.Fprintf(tw, "Peak CPS:\t%.2f\n", res.MaxCPS)
	fmt.Fprintf(tw, "Peak concurrent:\t%d\n", res.MaxConcurrent)
	fmt.Fprintf(tw, "Success rate:\t%.1f%%\n", res.OverallSuccessRate*100)
	fmt.Fprintf(tw, "Total errors:\t%d\n", res.TotalErrors)
	fmt.Fprintf(tw, "Duration:\t%s\n", formatSeconds(res.Duration))
	tw.Flush()
}

// progressLine renders one poll of a waiting start.
func progressLine(p domain.LoadTestPoint) string {
	return fmt.Sprintf("%s  cps=%.1f  concurrent=%d  success=%.1f%%  errors=%d",
		p.Timestamp.Local().Format("15:04:05"), p.CPS, p.ConcurrentCalls, p.SuccessRate*100, p.Errors)
}

func printRuns(w io.Writer, runs []runstore.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSOURCE\tSTATE\tCPS\tDURATION\tCOUNTRIES\tAVG CPS")
	fmt.Fprintln(tw, "--\t-------\t------\t-----\t---\t--------\t---------\t-------")
	for _, r := range runs {
		avg := "-"
		if r.Result != nil {
			avg = fmt.Sprintf("%.2f", r.Result.AvgCPS)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%g\t%dm\t%s\t%s\n",
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Source,
			r.State,
			r.Config.TargetCPS,
			r.Config.DurationMinutes,
			strings.Join(r.Config.CountriesToTest, ","),
			avg,
		)
	}
	tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatSeconds(s float64) string {
	return (time.Duration(s * float64(time.Second))).Round(time.Second).String()
}
