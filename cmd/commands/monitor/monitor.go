package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/config"
	"nathanbeddoewebdev/dialctl/internal/logging"
	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/perf/services"
	"nathanbeddoewebdev/dialctl/internal/perf/stream"
	"nathanbeddoewebdev/dialctl/internal/telemetry"
	"nathanbeddoewebdev/dialctl/internal/tui"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// dialer, when set, replaces the websocket dialer. Tests swap it.
var dialer stream.Dialer

// NewCommand returns the "monitor" command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch live dialer performance",
		Long: `Open the live performance dashboard: CLI quotas, the metrics stream and
the running load test.

With --plain, or when stdout is not a terminal, one line is printed per
metrics sample and a peak/average summary is printed on exit.

Examples:
  dialctl monitor
  dialctl monitor --plain --duration 5m
  dialctl monitor --metrics-addr :9464`,
		Args:         cobra.NoArgs,
		RunE:         runMonitor,
		SilenceUsage: true,
	}

	cmd.Flags().Bool("plain", false, "Print metrics as lines instead of opening the dashboard")
	cmd.Flags().Duration("duration", 0, "Stop after this long (default: until interrupted)")
	cmd.Flags().Duration("refresh-interval", services.RefreshInterval, "How often quotas and DTMF menus are re-fetched")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")

	return cmd
}

func runMonitor(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	plain, _ := f.GetBool("plain")
	duration, _ := f.GetDuration("duration")
	interval, _ := f.GetDuration("refresh-interval")
	metricsAddr, _ := f.GetString("metrics-addr")

	sess, err := cmdutil.NewSession(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	tuiMode := !plain && cmdutil.Interactive()
	log := sess.Log
	if tuiMode {
		fileLog, closer, err := fileLogger(sess.Config)
		if err != nil {
			return err
		}
		defer closer.Close()
		log = fileLog
	}

	var metrics *telemetry.Metrics
	if metricsAddr != "" {
		metrics = telemetry.New()
		stop, err := serveMetrics(metricsAddr, metrics.Handler(), log)
		if err != nil {
			return err
		}
		defer stop()
		fmt.Fprintf(cmd.ErrOrStderr(), "Serving metrics on http://%s/metrics\n", metricsAddr)
	}

	dash := services.NewDashboard(sess.Source,
		services.WithLogger(log),
		services.WithMetrics(metrics),
	)
	defer dash.Close()

	client := newStreamClient(sess.Config, dialerFor(sess.Source), log)
	client.Start(ctx)
	defer client.Close()

	if tuiMode {
		return tui.RunMonitor(ctx, dash, tui.MonitorOptions{
			Events:          client.Events(),
			RefreshInterval: interval,
		})
	}
	return runPlain(ctx, cmd.OutOrStdout(), dash, client.Events(), interval)
}

// dialerFor returns the stream dialer for src. Sources that carry
// credentials authenticate the upgrade request with them.
func dialerFor(src domain.Source) stream.Dialer {
	if dialer != nil {
		return dialer
	}
	var d stream.WebsocketDialer
	if a, ok := src.(interface{ AuthHeader() http.Header }); ok {
		d.Header = a.AuthHeader()
	}
	return d
}

func newStreamClient(cfg config.Config, d stream.Dialer, log zerolog.Logger) *stream.Client {
	opts := []stream.Option{
		stream.WithDialer(d),
		stream.WithLogger(log.With().Str("component", "stream").Logger()),
	}
	if len(cfg.StreamRestrictedHosts) > 0 {
		opts = append(opts, stream.WithRestrictedPatterns(cfg.StreamRestrictedHosts))
	}
	return stream.New(cfg.StreamURL, opts...)
}

// fileLogger keeps log lines off the dashboard's alt screen.
func fileLogger(cfg config.Config) (zerolog.Logger, io.Closer, error) {
	dir, err := config.Dir()
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	return logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Format: logging.FormatJSON,
		Output: filepath.Join(dir, "dialctl.log"),
	})
}

func serveMetrics(addr string, h http.Handler, log zerolog.Logger) (stop func(), err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to serve metrics on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", h)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("metrics server shutdown failed")
		}
	}, nil
}

// runPlain prints the dashboard as a line stream until ctx ends. A closed
// or disabled stream leaves the REST refresh running.
func runPlain(ctx context.Context, w io.Writer, dash *services.Dashboard, events <-chan stream.Event, interval time.Duration) error {
	if err := dash.Refresh(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(w, "refresh failed: %v\n", err)
	}
	fmt.Fprintf(w, "Monitoring %s\n", dash.Source.GetDisplayName())
	printQuotaLine(w, dash)

	refreshed := make(chan error, 1)
	go dash.AutoRefresh(ctx, interval, func(err error) {
		select {
		case refreshed <- err:
		default:
		}
	})

	for {
		select {
		case <-ctx.Done():
			printSummary(w, dash)
			return nil

		case err := <-refreshed:
			if err != nil {
				fmt.Fprintf(w, "refresh failed: %v\n", err)
				continue
			}
			printQuotaLine(w, dash)

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			dash.HandleEvent(ctx, ev)
			printEvent(w, ev)
		}
	}
}

func printEvent(w io.Writer, ev stream.Event) {
	switch e := ev.(type) {
	case stream.MetricEvent:
		printSample(w, e.Sample)
	case stream.TestStatusEvent:
		state := "stopped"
		if e.Running {
			state = "running"
		}
		fmt.Fprintf(w, "load test %s\n", state)
	case stream.StateEvent:
		line := "stream " + string(e.State)
		if e.Err != nil {
			line += ": " + e.Err.Error()
		}
		fmt.Fprintln(w, line)
	}
}

func printSample(w io.Writer, s domain.MetricSample) {
	fmt.Fprintf(w, "%s  cps=%.1f  concurrent=%d  success=%.1f%%  clis=%d/%d\n",
		s.Timestamp.Local().Format("15:04:05"),
		s.CPS,
		s.ConcurrentCalls,
		s.SuccessRate,
		s.ActiveCLIs,
		s.ActiveCLIs+s.BlockedCLIs,
	)
}

func printQuotaLine(w io.Writer, dash *services.Dashboard) {
	quotas := dash.Quotas.Quotas()
	if len(quotas) == 0 {
		return
	}
	parts := make([]string, 0, len(quotas))
	for _, q := range quotas {
		limit := "unlimited"
		if q.DailyLimit > 0 {
			limit = fmt.Sprintf("%d", q.DailyLimit)
		}
		parts = append(parts, fmt.Sprintf("%s %d/%s %s",
			strings.ToUpper(q.Country), q.Used, limit, domain.ClassifyUsage(q.Used, q.DailyLimit)))
	}
	fmt.Fprintf(w, "quotas  %s\n", strings.Join(parts, "  "))
}

func printSummary(w io.Writer, dash *services.Dashboard) {
	s := dash.Summary()
	if s.SampleCount == 0 {
		fmt.Fprintln(w, "\nNo metrics samples received.")
		return
	}
	fmt.Fprintf(w, "\nSummary over %d sample(s), %s\n", s.SampleCount, s.Window.Round(time.Second))
	fmt.Fprintf(w, "  CPS:          peak %.1f  avg %.1f\n", s.PeakCPS, s.AvgCPS)
	fmt.Fprintf(w, "  Concurrent:   peak %d  avg %.1f\n", s.PeakConcurrent, s.AvgConcurrent)
	fmt.Fprintf(w, "  Success rate: avg %.1f%%  min %.1f%%\n", s.AvgSuccessRate, s.MinSuccessRate)
}
