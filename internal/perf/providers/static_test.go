package providers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"nathanbeddoewebdev/dialctl/internal/perf/domain"

	"github.com/google/go-cmp/cmp"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newStatic(t *testing.T) (*StaticSource, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewStaticSource(WithClock(clock.Now)), clock
}

func TestStatic_LoadTestLifecycle(t *testing.T) {
	s, clock := newStatic(t)
	ctx := context.Background()

	if _, err := s.LoadTestResults(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before any run, got %v", err)
	}

	cfg := domain.LoadTestConfig{TargetCPS: 20, DurationMinutes: 1, CountriesToTest: []string{"usa"}, NumberOfCLIs: 100}
	if err := s.StartLoadTest(ctx, cfg); err != nil {
		t.Fatalf("StartLoadTest failed: %v", err)
	}
	if err := s.StartLoadTest(ctx, cfg); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict on second start, got %v", err)
	}

	clock.Advance(5 * time.Second)
	st, _ := s.LoadTestStatus(ctx)
	if !st.IsRunning || st.CurrentCPS != 10 || st.ConcurrentCalls != 30 {
		t.Errorf("unexpected ramp status: %+v", st)
	}

	clock.Advance(25 * time.Second)
	st, _ = s.LoadTestStatus(ctx)
	if st.CurrentCPS != 20 || st.Errors != 3 {
		t.Errorf("unexpected plateau status: %+v", st)
	}

	clock.Advance(time.Minute)
	st, _ = s.LoadTestStatus(ctx)
	if st.IsRunning {
		t.Error("expected test finished after its duration")
	}

	res, err := s.LoadTestResults(ctx)
	if err != nil {
		t.Fatalf("LoadTestResults failed: %v", err)
	}
	// 10s ramp (area 100) + 50s at 20 (area 1000) over 60s.
	want := &domain.LoadTestResult{AvgCPS: 18.33, MaxCPS: 20, MaxConcurrent: 60, OverallSuccessRate: 0.92, TotalErrors: 6, Duration: 60}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestStatic_StopEndsTest(t *testing.T) {
	s, clock := newStatic(t)
	ctx := context.Background()

	if err := s.StopLoadTest(ctx); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict stopping idle runner, got %v", err)
	}
	_ = s.StartLoadTest(ctx, domain.LoadTestConfig{TargetCPS: 10, DurationMinutes: 10})
	clock.Advance(20 * time.Second)
	if err := s.StopLoadTest(ctx); err != nil {
		t.Fatalf("StopLoadTest failed: %v", err)
	}
	clock.Advance(time.Minute)

	res, _ := s.LoadTestResults(ctx)
	if res.Duration != 20 {
		t.Errorf("Duration = %v, want 20", res.Duration)
	}
	// A new test may start once the previous one stopped.
	if err := s.StartLoadTest(ctx, domain.LoadTestConfig{TargetCPS: 10, DurationMinutes: 1}); err != nil {
		t.Errorf("restart failed: %v", err)
	}
}

func TestStatic_ExportUsesLocalFormats(t *testing.T) {
	s, clock := newStatic(t)
	ctx := context.Background()
	_ = s.StartLoadTest(ctx, domain.LoadTestConfig{TargetCPS: 10, DurationMinutes: 1})
	clock.Advance(2 * time.Minute)

	data, err := s.ExportLoadTestResults(ctx, domain.FormatCSV)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.HasPrefix(string(data), "avg_cps,max_cps,") {
		t.Errorf("unexpected CSV: %q", data)
	}
	if _, err := s.ExportLoadTestResults(ctx, "pdf"); !domain.IsValidation(err) {
		t.Errorf("expected ValidationError for pdf, got %v", err)
	}
}

func TestStatic_Quotas(t *testing.T) {
	s := NewStaticSource(
		WithLimits(map[string]int{"usa": 100}),
		WithUsage(map[string]int{"usa": 50, "mexico": 9}),
		WithCLIs([]domain.CliRecord{{ID: "a", Country: "usa", UsageCount: 3}, {ID: "b", Country: "mexico", UsageCount: 4}}),
	)
	ctx := context.Background()

	if err := s.SetCliLimit(ctx, "Mexico", 20); err != nil {
		t.Fatalf("SetCliLimit failed: %v", err)
	}
	limits, _ := s.CliLimits(ctx)
	if diff := cmp.Diff(map[string]int{"usa": 100, "mexico": 20}, limits); diff != "" {
		t.Errorf("limits mismatch (-want +got):\n%s", diff)
	}

	_ = s.ResetCliUsage(ctx, "usa")
	usage, _ := s.CliUsage(ctx)
	if diff := cmp.Diff(map[string]int{"usa": 0, "mexico": 9}, usage); diff != "" {
		t.Errorf("usage mismatch (-want +got):\n%s", diff)
	}
	clis, _ := s.ListCLIs(ctx)
	if clis[0].UsageCount != 0 || clis[1].UsageCount != 4 {
		t.Errorf("unexpected CLI usage after reset: %+v", clis)
	}

	_ = s.ResetCliUsage(ctx, "")
	usage, _ = s.CliUsage(ctx)
	if usage["mexico"] != 0 {
		t.Errorf("expected all usage reset, got %v", usage)
	}

	// Returned maps are copies.
	usage["usa"] = 999
	again, _ := s.CliUsage(ctx)
	if again["usa"] != 0 {
		t.Error("caller mutation leaked into source")
	}
}

func TestStatic_Dtmf(t *testing.T) {
	s, _ := newStatic(t)
	ctx := context.Background()

	cfg := domain.DtmfCountryConfig{Country: "Peru", DtmfKey: "2", MenuTimeout: 10}
	if err := s.SaveDtmfConfig(ctx, cfg); err != nil {
		t.Fatalf("SaveDtmfConfig failed: %v", err)
	}
	configs, _ := s.DtmfConfigs(ctx)
	if configs["peru"].DtmfKey != "2" {
		t.Errorf("unexpected configs: %v", configs)
	}
	_ = s.ResetDtmfConfig(ctx, "PERU")
	configs, _ = s.DtmfConfigs(ctx)
	if len(configs) != 0 {
		t.Errorf("expected no overrides, got %v", configs)
	}
}

func TestStatic_SeededCLIs(t *testing.T) {
	s, _ := newStatic(t)
	clis, err := s.ListCLIs(context.Background())
	if err != nil {
		t.Fatalf("ListCLIs failed: %v", err)
	}
	if len(clis) != 20 {
		t.Fatalf("expected 20 seeded CLIs, got %d", len(clis))
	}
	seen := map[string]bool{}
	for _, c := range clis {
		if seen[c.ID] {
			t.Errorf("duplicate id %s", c.ID)
		}
		seen[c.ID] = true
	}
	if clis[10].Status != domain.CliStatusBlocked {
		t.Errorf("expected cli-011 blocked, got %s", clis[10].Status)
	}
}
