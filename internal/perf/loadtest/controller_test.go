package loadtest

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/perf/history"
	"nathanbeddoewebdev/dialctl/internal/runstore"

	"github.com/google/go-cmp/cmp"
)

// --- Fakes ---

type statusReply struct {
	status *domain.LoadTestStatus
	err    error
}

type fakeRunner struct {
	mu sync.Mutex

	startErr   error
	stopErr    error
	statuses   []statusReply
	result     *domain.LoadTestResult
	resultsErr error

	started []domain.LoadTestConfig
	calls   map[string]int
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		calls:  make(map[string]int),
		result: &domain.LoadTestResult{AvgCPS: 24.1, MaxCPS: 26.5, MaxConcurrent: 120, OverallSuccessRate: 0.94, TotalErrors: 3, Duration: 600},
	}
}

func (f *fakeRunner) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeRunner) StartLoadTest(_ context.Context, cfg domain.LoadTestConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["start"]++
	f.started = append(f.started, cfg)
	return f.startErr
}

func (f *fakeRunner) StopLoadTest(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["stop"]++
	return f.stopErr
}

func (f *fakeRunner) LoadTestStatus(context.Context) (*domain.LoadTestStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["status"]++
	if len(f.statuses) == 0 {
		return &domain.LoadTestStatus{IsRunning: true}, nil
	}
	next := f.statuses[0]
	f.statuses = f.statuses[1:]
	return next.status, next.err
}

func (f *fakeRunner) LoadTestResults(context.Context) (*domain.LoadTestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["results"]++
	if f.resultsErr != nil {
		return nil, f.resultsErr
	}
	r := *f.result
	return &r, nil
}

func (f *fakeRunner) ExportLoadTestResults(context.Context, string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeRunner) queue(replies ...statusReply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, replies...)
}

func running(cps float64) statusReply {
	return statusReply{status: &domain.LoadTestStatus{IsRunning: true, CurrentCPS: cps, ConcurrentCalls: int(cps * 4), SuccessRate: 0.9}}
}

func finished() statusReply {
	return statusReply{status: &domain.LoadTestStatus{IsRunning: false}}
}

// syncAfter runs scheduled functions immediately and records the delays.
type syncAfter struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *syncAfter) afterFunc(d time.Duration, f func()) func() bool {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	f()
	return func() bool { return false }
}

// heldAfter captures scheduled functions without running them.
type heldAfter struct {
	mu      sync.Mutex
	pending []func()
	stopped int
}

func (h *heldAfter) afterFunc(_ time.Duration, f func()) func() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = append(h.pending, f)
	return func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.stopped++
		return true
	}
}

type memRecorder struct {
	mu     sync.Mutex
	states []string
	last   runstore.Run
}

func (m *memRecorder) Save(run *runstore.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == "" {
		run.ID = "run-1"
	}
	m.states = append(m.states, run.State)
	m.last = *run
	return nil
}

// --- Helpers ---

func validConfig() domain.LoadTestConfig {
	return domain.LoadTestConfig{
		TargetCPS:       25,
		DurationMinutes: 10,
		CountriesToTest: []string{"usa", "mexico"},
		NumberOfCLIs:    500,
	}
}

func newManualController(t *testing.T, runner *fakeRunner, opts ...Option) (*Controller, *syncAfter) {
	t.Helper()
	after := &syncAfter{}
	base := []Option{WithManualPolling(), WithAfterFunc(after.afterFunc)}
	c := New(runner, append(base, opts...)...)
	t.Cleanup(func() { c.Close() })
	return c, after
}

// --- Tests ---

func TestStart_ValidationCollectsEveryViolation(t *testing.T) {
	runner := newFakeRunner()
	c, _ := newManualController(t, runner)

	err := c.Start(context.Background(), domain.LoadTestConfig{
		TargetCPS:       0,
		DurationMinutes: 121,
		CountriesToTest: []string{"usa", " "},
		NumberOfCLIs:    9,
	})

	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := []string{"target_cps", "duration_minutes", "number_of_clis", "countries_to_test"}
	if diff := cmp.Diff(want, verr.Fields()); diff != "" {
		t.Errorf("violations mismatch (-want +got):\n%s", diff)
	}
	if got := runner.count("start"); got != 0 {
		t.Errorf("expected no start call, got %d", got)
	}
	if c.State() != StateIdle {
		t.Errorf("State() = %s, want idle", c.State())
	}
}

func TestStart_BoundsAreInclusive(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.LoadTestConfig)
		ceiling float64
		wantErr string
	}{
		{"min cps", func(c *domain.LoadTestConfig) { c.TargetCPS = 1 }, 0, ""},
		{"max cps", func(c *domain.LoadTestConfig) { c.TargetCPS = 100 }, 0, ""},
		{"above ceiling", func(c *domain.LoadTestConfig) { c.TargetCPS = 100.5 }, 0, "target_cps"},
		{"lowered ceiling", func(c *domain.LoadTestConfig) { c.TargetCPS = 51 }, 50, "target_cps"},
		{"max duration", func(c *domain.LoadTestConfig) { c.DurationMinutes = 120 }, 0, ""},
		{"zero duration", func(c *domain.LoadTestConfig) { c.DurationMinutes = 0 }, 0, "duration_minutes"},
		{"min clis", func(c *domain.LoadTestConfig) { c.NumberOfCLIs = 10 }, 0, ""},
		{"max clis", func(c *domain.LoadTestConfig) { c.NumberOfCLIs = 50000 }, 0, ""},
		{"too many clis", func(c *domain.LoadTestConfig) { c.NumberOfCLIs = 50001 }, 0, "number_of_clis"},
		{"no countries", func(c *domain.LoadTestConfig) { c.CountriesToTest = nil }, 0, "countries_to_test"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := Validate(cfg, tt.ceiling)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *domain.ValidationError
			if !errors.As(err, &verr) || !verr.Has(tt.wantErr) {
				t.Fatalf("expected violation on %s, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestStart_NormalizesCountries(t *testing.T) {
	runner := newFakeRunner()
	c, _ := newManualController(t, runner)

	cfg := validConfig()
	cfg.CountriesToTest = []string{"USA", "mexico", " usa "}
	if err := c.Start(context.Background(), cfg); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if diff := cmp.Diff([]string{"usa", "mexico"}, runner.started[0].CountriesToTest); diff != "" {
		t.Errorf("countries mismatch (-want +got):\n%s", diff)
	}
}

func TestLifecycle_CompletesAndFetchesResultsOnce(t *testing.T) {
	runner := newFakeRunner()
	runner.queue(running(10), running(20), finished())
	c, _ := newManualController(t, runner)
	ctx := context.Background()

	if err := c.Start(ctx, validConfig()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if c.State() != StateRunning {
		t.Fatalf("State() = %s, want running", c.State())
	}

	for range 3 {
		if err := c.Poll(ctx); err != nil {
			t.Fatalf("Poll failed: %v", err)
		}
	}

	if c.State() != StateCompleted {
		t.Fatalf("State() = %s, want completed", c.State())
	}
	got := history.Series(c.Series(), func(p domain.LoadTestPoint) float64 { return p.CPS })
	if diff := cmp.Diff([]float64{10, 20}, got); diff != "" {
		t.Errorf("series mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(runner.result, c.Results()); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}

	// Further polls are no-ops once the test has completed.
	if err := c.Poll(ctx); err != nil {
		t.Fatalf("Poll after completion failed: %v", err)
	}
	if got := runner.count("status"); got != 3 {
		t.Errorf("expected 3 status calls, got %d", got)
	}
	if got := runner.count("results"); got != 1 {
		t.Errorf("expected results fetched exactly once, got %d", got)
	}
}

func TestPoll_ErrorKeepsRunning(t *testing.T) {
	runner := newFakeRunner()
	pollErr := &domain.ServerError{Op: "get load test status", Status: http.StatusBadGateway}
	runner.queue(statusReply{err: pollErr}, running(15))
	c, _ := newManualController(t, runner)
	ctx := context.Background()

	if err := c.Start(ctx, validConfig()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := c.Poll(ctx); !errors.Is(err, pollErr) {
		t.Fatalf("expected poll error, got %v", err)
	}
	if c.State() != StateRunning {
		t.Fatalf("State() = %s, want running after a failed poll", c.State())
	}

	if err := c.Poll(ctx); err != nil {
		t.Fatalf("second Poll failed: %v", err)
	}
	if len(c.Series()) != 1 {
		t.Errorf("expected 1 series point, got %d", len(c.Series()))
	}
	if c.LastError() != nil {
		t.Errorf("expected LastError cleared after a good poll, got %v", c.LastError())
	}
}

func TestPoll_OutsideRunningIsNoop(t *testing.T) {
	runner := newFakeRunner()
	c, _ := newManualController(t, runner)

	if err := c.Poll(context.Background()); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if got := runner.count("status"); got != 0 {
		t.Errorf("expected no status calls while idle, got %d", got)
	}
}

func TestSeries_BoundedToCapacity(t *testing.T) {
	runner := newFakeRunner()
	c, _ := newManualController(t, runner)
	ctx := context.Background()

	if err := c.Start(ctx, validConfig()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for i := 1; i <= history.Capacity+20; i++ {
		runner.queue(running(float64(i)))
		if err := c.Poll(ctx); err != nil {
			t.Fatalf("Poll %d failed: %v", i, err)
		}
	}

	series := c.Series()
	if len(series) != history.Capacity {
		t.Fatalf("expected %d points, got %d", history.Capacity, len(series))
	}
	if series[0].CPS != 21 || series[len(series)-1].CPS != float64(history.Capacity+20) {
		t.Errorf("unexpected window: first=%g last=%g", series[0].CPS, series[len(series)-1].CPS)
	}
}

func TestStop_OptimisticOnFailure(t *testing.T) {
	runner := newFakeRunner()
	runner.stopErr = &domain.TransportError{Op: "stop load test", Err: errors.New("connection reset")}
	c, after := newManualController(t, runner)
	ctx := context.Background()

	if err := c.Start(ctx, validConfig()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	err := c.Stop(ctx)
	var terr *domain.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError from Stop, got %v", err)
	}
	if c.State() != StateStopped {
		t.Fatalf("State() = %s, want stopped", c.State())
	}
	if diff := cmp.Diff([]time.Duration{StopGrace}, after.delays); diff != "" {
		t.Errorf("grace delay mismatch (-want +got):\n%s", diff)
	}
	if got := runner.count("results"); got != 1 {
		t.Errorf("expected one results fetch after the grace delay, got %d", got)
	}
	if c.Results() == nil {
		t.Error("expected results after grace fetch")
	}
}

func TestStop_GraceFetchCancelledByClose(t *testing.T) {
	runner := newFakeRunner()
	held := &heldAfter{}
	c := New(runner, WithManualPolling(), WithAfterFunc(held.afterFunc))
	ctx := context.Background()

	if err := c.Start(ctx, validConfig()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}

	if held.stopped != 1 {
		t.Errorf("expected pending grace timer to be stopped, got %d", held.stopped)
	}
	if got := runner.count("results"); got != 0 {
		t.Errorf("expected no results fetch after Close, got %d", got)
	}
}

func TestStop_WhenIdle(t *testing.T) {
	runner := newFakeRunner()
	c, _ := newManualController(t, runner)

	if err := c.Stop(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if got := runner.count("stop"); got != 0 {
		t.Errorf("expected no stop call, got %d", got)
	}
}

func TestStop_AfterClose(t *testing.T) {
	runner := newFakeRunner()
	c, after := newManualController(t, runner)
	ctx := context.Background()

	if err := c.Start(ctx, validConfig()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := c.Stop(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if got := runner.count("stop"); got != 0 {
		t.Errorf("expected no stop call after Close, got %d", got)
	}
	if got := runner.count("results"); got != 0 {
		t.Errorf("expected no results fetch after Close, got %d", got)
	}
	if len(after.delays) != 0 {
		t.Errorf("expected no grace timer after Close, got %v", after.delays)
	}
}

func TestStop_AfterCompletionDoesNotRefetch(t *testing.T) {
	runner := newFakeRunner()
	runner.queue(finished())
	c, _ := newManualController(t, runner)
	ctx := context.Background()

	if err := c.Start(ctx, validConfig()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.Poll(ctx); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if err := c.Stop(ctx); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning after completion, got %v", err)
	}
	if got := runner.count("results"); got != 1 {
		t.Errorf("expected exactly one results fetch, got %d", got)
	}
}

func TestStart_FailureThenRetry(t *testing.T) {
	runner := newFakeRunner()
	runner.startErr = &domain.ServerError{Op: "start load test", Status: http.StatusConflict}
	c, _ := newManualController(t, runner)
	ctx := context.Background()

	err := c.Start(ctx, validConfig())
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if c.State() != StateFailed {
		t.Fatalf("State() = %s, want failed", c.State())
	}

	runner.startErr = nil
	if err := c.Start(ctx, validConfig()); err != nil {
		t.Fatalf("Start from failed state: %v", err)
	}
	if c.State() != StateRunning {
		t.Errorf("State() = %s, want running", c.State())
	}
}

func TestStart_WhileRunning(t *testing.T) {
	runner := newFakeRunner()
	c, _ := newManualController(t, runner)
	ctx := context.Background()

	if err := c.Start(ctx, validConfig()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.Start(ctx, validConfig()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if got := runner.count("start"); got != 1 {
		t.Errorf("expected 1 start call, got %d", got)
	}
}

func TestReset(t *testing.T) {
	runner := newFakeRunner()
	runner.queue(running(5), finished())
	c, _ := newManualController(t, runner)
	ctx := context.Background()

	if err := c.Start(ctx, validConfig()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.Reset(); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy resetting a running test, got %v", err)
	}
	_ = c.Poll(ctx)
	_ = c.Poll(ctx)

	if err := c.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if c.State() != StateIdle {
		t.Errorf("State() = %s, want idle", c.State())
	}
	if c.Results() != nil || len(c.Series()) != 0 {
		t.Error("expected results and series cleared")
	}
}

type chanTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (t *chanTicker) C() <-chan time.Time { return t.ch }
func (t *chanTicker) Stop()               { t.once.Do(func() { close(t.stopped) }) }

func TestPollLoop_DrivenByTicker(t *testing.T) {
	runner := newFakeRunner()
	runner.queue(running(12), finished())
	ticker := &chanTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	var gotInterval time.Duration

	c := New(runner,
		WithPollInterval(50*time.Millisecond),
		WithTicker(func(d time.Duration) Ticker { gotInterval = d; return ticker }),
		WithAfterFunc((&syncAfter{}).afterFunc),
	)
	defer c.Close()

	if err := c.Start(context.Background(), validConfig()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if gotInterval != 50*time.Millisecond {
		t.Errorf("ticker interval = %v, want 50ms", gotInterval)
	}

	ticker.ch <- time.Now()
	ticker.ch <- time.Now()

	select {
	case <-ticker.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("poll loop did not stop after completion")
	}
	if c.State() != StateCompleted {
		t.Errorf("State() = %s, want completed", c.State())
	}
	if got := runner.count("results"); got != 1 {
		t.Errorf("expected one results fetch, got %d", got)
	}
}

func TestClose_StopsPollLoop(t *testing.T) {
	runner := newFakeRunner()
	ticker := &chanTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	c := New(runner, WithTicker(func(time.Duration) Ticker { return ticker }))

	if err := c.Start(context.Background(), validConfig()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case <-ticker.stopped:
	default:
		t.Fatal("expected ticker stopped by the time Close returns")
	}
	if err := c.Start(context.Background(), validConfig()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}

func TestRecorder_TracksTransitions(t *testing.T) {
	runner := newFakeRunner()
	runner.queue(finished())
	rec := &memRecorder{}
	c, _ := newManualController(t, runner, WithRecorder(rec), WithSource("static"))
	ctx := context.Background()

	if err := c.Start(ctx, validConfig()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.Poll(ctx); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}

	want := []string{"starting", "running", "completed", "completed"}
	if diff := cmp.Diff(want, rec.states); diff != "" {
		t.Errorf("recorded states mismatch (-want +got):\n%s", diff)
	}
	if rec.last.Source != "static" || rec.last.Result == nil {
		t.Errorf("unexpected final run: %+v", rec.last)
	}
	if c.RunID() != "run-1" {
		t.Errorf("RunID() = %q, want run-1", c.RunID())
	}
}
