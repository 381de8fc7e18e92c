// Package loadtest drives synthetic load tests against the dialer's test
// runner and tracks their lifecycle:
//
//	Idle → Starting → Running → {Completed, Stopped, Failed} → Idle
//
// While a test runs the controller polls its status every PollInterval and
// accumulates a bounded real-time series. When the runner reports the test
// finished, or the operator stops it, results are fetched exactly once.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/perf/history"
	"nathanbeddoewebdev/dialctl/internal/runstore"
	"nathanbeddoewebdev/dialctl/internal/telemetry"

	"github.com/rs/zerolog"
)

const (
	// PollInterval is the delay between status polls while a test runs.
	PollInterval = 2 * time.Second

	// StopGrace is how long after a stop the results are fetched, giving the
	// runner time to finalize them.
	StopGrace = 2 * time.Second
)

// State is a load-test lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateStopped   State = "stopped"
	StateFailed    State = "failed"
)

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateStopped || s == StateFailed
}

var (
	// ErrBusy is returned by Start and Reset while a test is starting or
	// running.
	ErrBusy = errors.New("loadtest: a load test is already in progress")

	// ErrNotRunning is returned by Stop when there is nothing to stop.
	ErrNotRunning = errors.New("loadtest: no load test is running")

	// ErrClosed is returned once the controller has been closed.
	ErrClosed = errors.New("loadtest: controller closed")
)

// Ticker is the subset of *time.Ticker the poll loop needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker { return timeTicker{time.NewTicker(d)} }

// RunRecorder persists run transitions. runstore.SQLiteRepository
// satisfies it.
type RunRecorder interface {
	Save(run *runstore.Run) error
}

// Controller is the load-test state machine. It is safe for concurrent
// use: the poll loop, the stop grace timer, and the UI may all call into
// it.
type Controller struct {
	runner  domain.LoadTestRunner
	source  string
	ceiling float64
	log     zerolog.Logger

	pollInterval time.Duration
	stopGrace    time.Duration
	manual       bool
	newTicker    func(time.Duration) Ticker
	afterFunc    func(time.Duration, func()) (stop func() bool)
	now          func() time.Time

	recorder RunRecorder
	metrics  *telemetry.Metrics

	series *history.Buffer[domain.LoadTestPoint]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu             sync.Mutex
	state          State
	gen            uint64
	config         domain.LoadTestConfig
	results        *domain.LoadTestResult
	resultsFetched bool
	lastErr        error
	run            *runstore.Run
	pollCancel     context.CancelFunc
	graceStop      func() bool
	closed         bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithSource records the backend name on persisted runs.
func WithSource(name string) Option {
	return func(c *Controller) { c.source = name }
}

// WithCPSCeiling lowers or raises the maximum accepted target CPS.
func WithCPSCeiling(ceiling float64) Option {
	return func(c *Controller) {
		if ceiling > 0 {
			c.ceiling = ceiling
		}
	}
}

// WithLogger sets the controller's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithPollInterval overrides PollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) { c.pollInterval = d }
}

// WithStopGrace overrides StopGrace.
func WithStopGrace(d time.Duration) Option {
	return func(c *Controller) { c.stopGrace = d }
}

// WithManualPolling disables the background poll loop. The caller drives
// polling by calling Poll, e.g. from a bubbletea tick.
func WithManualPolling() Option {
	return func(c *Controller) { c.manual = true }
}

// WithTicker replaces the ticker factory used by the poll loop.
func WithTicker(f func(time.Duration) Ticker) Option {
	return func(c *Controller) { c.newTicker = f }
}

// WithAfterFunc replaces the timer used to schedule the post-stop results
// fetch. It has the shape of time.AfterFunc; the returned stop function
// reports whether the call was prevented.
func WithAfterFunc(f func(time.Duration, func()) (stop func() bool)) Option {
	return func(c *Controller) { c.afterFunc = f }
}

// WithClock replaces time.Now for series timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithRecorder persists every run transition.
func WithRecorder(r RunRecorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithMetrics exports target and current CPS gauges.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// New creates an idle controller driving runner.
func New(runner domain.LoadTestRunner, opts ...Option) *Controller {
	c := &Controller{
		runner:       runner,
		ceiling:      DefaultCPSCeiling,
		log:          zerolog.Nop(),
		pollInterval: PollInterval,
		stopGrace:    StopGrace,
		newTicker:    newTimeTicker,
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
		now:    time.Now,
		series: history.New[domain.LoadTestPoint](),
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Config returns the configuration of the current or most recent run.
func (c *Controller) Config() domain.LoadTestConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// Results returns the last fetched result, or nil.
func (c *Controller) Results() *domain.LoadTestResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.results == nil {
		return nil
	}
	r := *c.results
	return &r
}

// Series returns a snapshot of the real-time series, oldest first.
func (c *Controller) Series() []domain.LoadTestPoint {
	return c.series.Snapshot()
}

// LastError returns the error that moved the controller to Failed, or the
// most recent poll or fetch error.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// RunID returns the persisted ID of the current run, or "" when no
// recorder is configured.
func (c *Controller) RunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		return ""
	}
	return c.run.ID
}

// Validate checks cfg against the controller's bounds without side
// effects.
func (c *Controller) Validate(cfg domain.LoadTestConfig) error {
	return Validate(cfg, c.ceiling)
}

// Start validates cfg and asks the runner to start a test. Validation
// failures return a *domain.ValidationError listing every violation and
// leave the controller untouched.
func (c *Controller) Start(ctx context.Context, cfg domain.LoadTestConfig) error {
	if err := c.Validate(cfg); err != nil {
		return err
	}
	cfg = Normalize(cfg)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateStarting || c.state == StateRunning {
		c.mu.Unlock()
		return ErrBusy
	}
	c.stopGraceLocked()
	c.gen++
	gen := c.gen
	c.state = StateStarting
	c.config = cfg
	c.results = nil
	c.resultsFetched = false
	c.lastErr = nil
	c.run = &runstore.Run{Source: c.source, Config: cfg, State: string(StateStarting), StartedAt: c.now().UTC()}
	c.recordLocked()
	c.mu.Unlock()

	c.log.Info().Float64("target_cps", cfg.TargetCPS).Int("duration_minutes", cfg.DurationMinutes).
		Strs("countries", cfg.CountriesToTest).Msg("starting load test")

	err := c.runner.StartLoadTest(ctx, cfg)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.state != StateStarting {
		// Stopped or closed while the start request was in flight.
		return err
	}
	if err != nil {
		c.state = StateFailed
		c.lastErr = err
		c.run.ErrorMessage = err.Error()
		c.recordLocked()
		c.log.Error().Err(err).Msg("load test failed to start")
		return err
	}

	c.state = StateRunning
	c.series.Reset()
	c.resultsFetched = false
	c.recordLocked()
	c.metrics.SetLoadTestTarget(cfg.TargetCPS)

	if !c.manual {
		c.startPollLoopLocked()
	}
	return nil
}

func (c *Controller) startPollLoopLocked() {
	ctx, cancel := context.WithCancel(c.ctx)
	c.pollCancel = cancel
	ticker := c.newTicker(c.pollInterval)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				_ = c.Poll(ctx)
			}
		}
	}()
}

func (c *Controller) stopPollLoopLocked() {
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
	}
}

func (c *Controller) stopGraceLocked() {
	if c.graceStop != nil {
		if c.graceStop() {
			c.wg.Done()
		}
		c.graceStop = nil
	}
}

// Poll runs one poll step. Outside Running it does nothing. A failed poll
// is logged and returned; the state is unchanged and polling continues.
func (c *Controller) Poll(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return nil
	}
	gen := c.gen
	c.mu.Unlock()

	st, err := c.runner.LoadTestStatus(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("load test poll failed")
		c.mu.Lock()
		if c.gen == gen {
			c.lastErr = err
		}
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	if c.gen != gen || c.state != StateRunning {
		c.mu.Unlock()
		return nil
	}

	if st.IsRunning {
		c.series.Append(domain.LoadTestPoint{
			Timestamp:       c.now(),
			CPS:             st.CurrentCPS,
			ConcurrentCalls: st.ConcurrentCalls,
			SuccessRate:     st.SuccessRate,
			Errors:          st.Errors,
		})
		c.lastErr = nil
		c.mu.Unlock()
		c.metrics.ObserveLoadTest(*st)
		return nil
	}

	c.state = StateCompleted
	// The loop is cancelled only after the fetch: when Poll runs on the
	// loop, ctx is the loop's own context.
	cancelLoop := c.pollCancel
	c.pollCancel = nil
	c.recordLocked()
	fetch := c.claimResultsLocked()
	c.mu.Unlock()

	c.log.Info().Msg("load test completed")
	c.metrics.LoadTestEnded()
	if fetch {
		err = c.fetchResults(ctx, gen)
	}
	if cancelLoop != nil {
		cancelLoop()
	}
	return err
}

// Stop asks the runner to stop the test. The controller moves to Stopped
// even if the request fails, and results are fetched after StopGrace.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateRunning && c.state != StateStarting {
		c.mu.Unlock()
		return ErrNotRunning
	}
	gen := c.gen
	c.mu.Unlock()

	err := c.runner.StopLoadTest(ctx)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return err
	}
	c.state = StateStopped
	c.stopPollLoopLocked()
	if err != nil {
		c.lastErr = err
		c.run.ErrorMessage = err.Error()
		c.log.Warn().Err(err).Msg("stop request failed; marking test stopped")
	}
	c.recordLocked()
	fetch := c.claimResultsLocked()
	if fetch {
		c.wg.Add(1)
	}
	c.mu.Unlock()

	c.metrics.LoadTestEnded()

	if fetch {
		stop := c.afterFunc(c.stopGrace, func() {
			defer c.wg.Done()
			if c.ctx.Err() != nil {
				return
			}
			_ = c.fetchResults(c.ctx, gen)
		})
		c.mu.Lock()
		if c.gen == gen && !c.closed {
			c.graceStop = stop
		} else if stop() {
			c.wg.Done()
		}
		c.mu.Unlock()
	}
	return err
}

// claimResultsLocked takes the results-fetched latch. It returns true the
// first time it is called for a run.
func (c *Controller) claimResultsLocked() bool {
	if c.resultsFetched {
		return false
	}
	c.resultsFetched = true
	return true
}

func (c *Controller) fetchResults(ctx context.Context, gen uint64) error {
	res, err := c.runner.LoadTestResults(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return err
	}
	if err != nil {
		c.lastErr = err
		c.log.Warn().Err(err).Msg("fetching load test results failed")
		return err
	}
	c.results = res
	if c.run != nil {
		c.run.Result = res
	}
	c.recordLocked()
	return nil
}

// FetchResults asks the runner for results now, regardless of the
// exactly-once latch, and stores them as the last fetched result.
func (c *Controller) FetchResults(ctx context.Context) (*domain.LoadTestResult, error) {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	if err := c.fetchResults(ctx, gen); err != nil {
		return nil, err
	}
	return c.Results(), nil
}

// Reset returns a finished controller to Idle, clearing the series and
// results.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateStarting || c.state == StateRunning {
		return ErrBusy
	}
	c.stopGraceLocked()
	c.gen++
	c.state = StateIdle
	c.results = nil
	c.resultsFetched = false
	c.lastErr = nil
	c.run = nil
	c.series.Reset()
	return nil
}

// Close cancels the poll loop and any pending results fetch and waits for
// them to exit. It does not stop a test on the runner.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.stopPollLoopLocked()
	c.stopGraceLocked()
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	return nil
}

// recordLocked persists the current run. Failures are logged, never
// returned: losing history must not interrupt a running test.
func (c *Controller) recordLocked() {
	if c.recorder == nil || c.run == nil {
		return
	}
	c.run.State = string(c.state)
	if err := c.recorder.Save(c.run); err != nil {
		c.log.Warn().Err(err).Msg("recording load test run failed")
	}
}

// Describe formats the controller state for status lines.
func (c *Controller) Describe() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateRunning, StateStarting:
		return fmt.Sprintf("%s (target %g CPS, %d min)", c.state, c.config.TargetCPS, c.config.DurationMinutes)
	case StateFailed:
		if c.lastErr != nil {
			return fmt.Sprintf("%s: %v", c.state, c.lastErr)
		}
	}
	return string(c.state)
}
