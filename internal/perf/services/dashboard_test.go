package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"nathanbeddoewebdev/dialctl/internal/perf/catalog"
	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/perf/loadtest"
	"nathanbeddoewebdev/dialctl/internal/perf/notify"
	"nathanbeddoewebdev/dialctl/internal/perf/providers"
	"nathanbeddoewebdev/dialctl/internal/perf/stream"

	"github.com/google/go-cmp/cmp"
)

// flakySource fails the usage endpoint while leaving everything else
// working.
type flakySource struct {
	*providers.StaticSource
	usageErr error
}

func (f *flakySource) CliUsage(ctx context.Context) (map[string]int, error) {
	if f.usageErr != nil {
		return nil, f.usageErr
	}
	return f.StaticSource.CliUsage(ctx)
}

func newStaticDashboard(t *testing.T) *Dashboard {
	t.Helper()
	d := NewDashboard(providers.NewStaticSource(
		providers.WithLimits(map[string]int{"usa": 100}),
		providers.WithUsage(map[string]int{"usa": 95}),
		providers.WithCLIs([]domain.CliRecord{{ID: "c1", Country: "usa", UsageCount: 95}}),
	), WithLoadTestOptions(loadtest.WithManualPolling()))
	t.Cleanup(func() { d.Close() })
	return d
}

func TestRefresh_LoadsEveryComponent(t *testing.T) {
	d := newStaticDashboard(t)

	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if d.Quotas.Status("usa") != domain.CliStatusLimitReached {
		t.Errorf("expected usa limit reached, got %s", d.Quotas.Status("usa"))
	}
	page, _ := d.Catalog.List(catalog.Query{})
	if len(page.Items) != 1 || page.Items[0].Status != domain.CliStatusLimitReached {
		t.Errorf("catalog not classified against fresh limits: %+v", page.Items)
	}
	if d.LastSync().IsZero() {
		t.Error("expected LastSync set")
	}
	if len(d.Dtmf.Countries()) == 0 {
		t.Error("expected DTMF defaults available")
	}
}

func TestRefresh_PartialFailureNotifies(t *testing.T) {
	src := &flakySource{
		StaticSource: providers.NewStaticSource(providers.WithLimits(map[string]int{"usa": 100})),
		usageErr:     &domain.TransportError{Op: "get CLI usage", Err: errors.New("refused")},
	}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	notices := notify.New(notify.DefaultTTL, func() time.Time { return now })
	d := NewDashboard(src, WithNotifier(notices), WithLoadTestOptions(loadtest.WithManualPolling()))
	t.Cleanup(func() { d.Close() })

	err := d.Refresh(context.Background())
	var terr *domain.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if !d.LastSync().IsZero() {
		t.Error("LastSync must not advance on failure")
	}
	notice, ok := d.Notices.Current()
	if !ok || notice.Op != "get CLI usage" {
		t.Errorf("expected failure notice naming the operation, got %+v", notice)
	}
	if d.Catalog.Len() == 0 {
		t.Error("expected catalog still loaded when quotas fail")
	}

	now = now.Add(notify.DefaultTTL + time.Second)
	if _, ok := d.Notices.Current(); ok {
		t.Error("expected the failure notice to expire")
	}
}

func TestAutoRefresh_StopsOnCancel(t *testing.T) {
	d := newStaticDashboard(t)
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	done := make(chan struct{})
	go func() {
		d.AutoRefresh(ctx, time.Millisecond, func(err error) {
			if err != nil {
				t.Errorf("refresh error: %v", err)
			}
			if calls.Add(1) == 2 {
				cancel()
			}
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("AutoRefresh did not return after cancel")
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 refresh callbacks, got %d", calls.Load())
	}
}

func TestHandleEvent_FeedsHistoryAndStats(t *testing.T) {
	d := newStaticDashboard(t)
	ctx := context.Background()

	d.HandleEvent(ctx, stream.MetricEvent{Sample: domain.MetricSample{CPS: 12, ConcurrentCalls: 30, SuccessRate: 0.9}})
	d.HandleEvent(ctx, stream.MetricEvent{Sample: domain.MetricSample{CPS: 18, ConcurrentCalls: 40, SuccessRate: 0.8}})
	d.HandleEvent(ctx, stream.CliStatsEvent{Data: map[string]any{"active": 12.0}})

	if d.History.Len() != 2 {
		t.Fatalf("expected 2 samples in history, got %d", d.History.Len())
	}
	sum := d.Summary()
	if sum.PeakCPS != 18 || sum.AvgCPS != 15 {
		t.Errorf("unexpected summary: %+v", sum)
	}
	if diff := cmp.Diff(map[string]any{"active": 12.0}, d.CliStats()); diff != "" {
		t.Errorf("cli stats mismatch (-want +got):\n%s", diff)
	}

	d.HandleEvent(ctx, stream.StateEvent{State: stream.StateError, Err: errors.New("reconnect failed")})
	notice, _ := d.Notices.Current()
	if notice.Op != "metrics stream" {
		t.Errorf("expected stream notice, got %+v", notice)
	}
}

func TestHandleEvent_PushedCompletionPolls(t *testing.T) {
	d := newStaticDashboard(t)
	ctx := context.Background()

	cfg := domain.LoadTestConfig{TargetCPS: 10, DurationMinutes: 1, CountriesToTest: []string{"usa"}, NumberOfCLIs: 10}
	if err := d.LoadTest.Start(ctx, cfg); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := d.Source.StopLoadTest(ctx); err != nil {
		t.Fatalf("runner stop failed: %v", err)
	}

	d.HandleEvent(ctx, stream.TestStatusEvent{Running: false})
	if d.LoadTest.State() != loadtest.StateCompleted {
		t.Errorf("expected completed after pushed status, got %s", d.LoadTest.State())
	}
	if d.LoadTest.Results() == nil {
		t.Error("expected results fetched")
	}
}
