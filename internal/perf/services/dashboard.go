// Package services composes the performance components into the single
// object the dashboard and the commands work against.
package services

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"nathanbeddoewebdev/dialctl/internal/perf/catalog"
	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/perf/dtmf"
	"nathanbeddoewebdev/dialctl/internal/perf/history"
	"nathanbeddoewebdev/dialctl/internal/perf/loadtest"
	"nathanbeddoewebdev/dialctl/internal/perf/notify"
	"nathanbeddoewebdev/dialctl/internal/perf/quota"
	"nathanbeddoewebdev/dialctl/internal/perf/stream"
	"nathanbeddoewebdev/dialctl/internal/telemetry"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// RefreshInterval is the dashboard auto-refresh period.
// Exported as a variable so tests can override it for speed.
var RefreshInterval = 5 * time.Second

// Dashboard owns one instance of every component for a source.
type Dashboard struct {
	Source   domain.Source
	Quotas   *quota.Engine
	Dtmf     *dtmf.Registry
	Catalog  *catalog.Catalog
	LoadTest *loadtest.Controller
	History  *history.Buffer[domain.MetricSample]
	Notices  *notify.Notifier

	metrics *telemetry.Metrics
	log     zerolog.Logger

	mu       sync.Mutex
	cliStats map[string]any
	lastSync time.Time
}

type options struct {
	log      zerolog.Logger
	metrics  *telemetry.Metrics
	notifier *notify.Notifier
	ltOpts   []loadtest.Option
}

// Option configures a Dashboard.
type Option func(*options)

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithNotifier(n *notify.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithLoadTestOptions passes extra options to the load-test controller.
func WithLoadTestOptions(opts ...loadtest.Option) Option {
	return func(o *options) { o.ltOpts = append(o.ltOpts, opts...) }
}

// NewDashboard wires the components for src. Nothing is fetched until
// Refresh is called.
func NewDashboard(src domain.Source, opts ...Option) *Dashboard {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.notifier == nil {
		o.notifier = notify.New(notify.DefaultTTL, nil)
	}

	ltOpts := append([]loadtest.Option{
		loadtest.WithSource(src.GetDisplayName()),
		loadtest.WithLogger(o.log),
		loadtest.WithMetrics(o.metrics),
	}, o.ltOpts...)

	return &Dashboard{
		Source:   src,
		Quotas:   quota.New(src, quota.WithLogger(o.log), quota.WithMetrics(o.metrics)),
		Dtmf:     dtmf.New(src, dtmf.WithLogger(o.log)),
		Catalog:  catalog.New(nil, nil),
		LoadTest: loadtest.New(src, ltOpts...),
		History:  history.New[domain.MetricSample](),
		Notices:  o.notifier,
		metrics:  o.metrics,
		log:      o.log,
	}
}

// Refresh fetches quotas and DTMF overrides concurrently, then reloads the
// CLI catalog against the fresh limits. Each failing fetch posts a notice;
// the others still apply. The joined error is returned.
func (d *Dashboard) Refresh(ctx context.Context) error {
	var quotaErr, dtmfErr error

	var g errgroup.Group
	g.Go(func() error {
		quotaErr = d.Quotas.Refresh(ctx)
		return nil
	})
	g.Go(func() error {
		dtmfErr = d.Dtmf.Refresh(ctx)
		return nil
	})
	_ = g.Wait()

	var catalogErr error
	if records, err := d.Source.ListCLIs(ctx); err != nil {
		catalogErr = err
	} else {
		d.Catalog.Replace(records, d.Quotas.Limit)
	}

	for _, err := range []error{quotaErr, dtmfErr, catalogErr} {
		if err != nil {
			d.Notices.Error("", err)
		}
	}
	if err := errors.Join(quotaErr, dtmfErr, catalogErr); err != nil {
		return err
	}

	d.mu.Lock()
	d.lastSync = time.Now()
	d.mu.Unlock()
	return nil
}

// LastSync returns the time of the last fully successful Refresh.
func (d *Dashboard) LastSync() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSync
}

// AutoRefresh calls Refresh every interval until ctx ends, passing each
// result to fn. It blocks; run it in its own goroutine.
func (d *Dashboard) AutoRefresh(ctx context.Context, interval time.Duration, fn func(error)) {
	if interval <= 0 {
		interval = RefreshInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := d.Refresh(ctx)
			if ctx.Err() != nil {
				return
			}
			if fn != nil {
				fn(err)
			}
		}
	}
}

// HandleEvent routes one stream event. A pushed "not running" status for
// a test the controller still considers running triggers an immediate
// poll so the result fetch does not wait for the next tick.
func (d *Dashboard) HandleEvent(ctx context.Context, ev stream.Event) {
	stream.DispatchOne(ev, stream.Handlers{
		History: d.History,
		Metrics: d.metrics,
		OnTestStatus: func(e stream.TestStatusEvent) {
			if !e.Running && d.LoadTest.State() == loadtest.StateRunning {
				if err := d.LoadTest.Poll(ctx); err != nil {
					d.Notices.Error("", err)
				}
			}
		},
		OnCliStats: func(e stream.CliStatsEvent) {
			d.mu.Lock()
			d.cliStats = maps.Clone(e.Data)
			d.mu.Unlock()
		},
		OnState: func(e stream.StateEvent) {
			switch e.State {
			case stream.StateError:
				msg := "metrics stream lost"
				if e.Err != nil {
					msg += ": " + e.Err.Error()
				}
				d.Notices.Warn("metrics stream", msg)
			case stream.StateDisabled:
				d.Notices.Info("metrics stream", "live metrics disabled on this host")
			}
		},
	})
}

// CliStats returns the latest CLI pool statistics pushed by the stream.
func (d *Dashboard) CliStats() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.cliStats)
}

// Summary summarizes the metrics currently in the history window.
func (d *Dashboard) Summary() history.Summary {
	return history.Summarize(d.History.Snapshot())
}

// Close stops the load-test controller's timers.
func (d *Dashboard) Close() error {
	return d.LoadTest.Close()
}
