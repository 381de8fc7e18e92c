package providers

import (
	"context"
	"fmt"
	"maps"
	"math"
	"net/http"
	"sync"
	"time"

	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/perf/loadtest"
	"nathanbeddoewebdev/dialctl/internal/util"
)

// Simulation constants for the static load-test runner.
const (
	staticRampUp      = 10 * time.Second
	staticSuccessRate = 0.92
	staticCallSeconds = 3.0
	staticErrorEvery  = 10 * time.Second
)

// Compile-time check that StaticSource satisfies domain.Source.
var _ domain.Source = (*StaticSource)(nil)

// StaticSource is an in-memory domain.Source used when no backend is
// reachable. Load tests are simulated against the injected clock.
type StaticSource struct {
	now func() time.Time

	mu        sync.Mutex
	limits    map[string]int
	usage     map[string]int
	overrides map[string]domain.DtmfCountryConfig
	clis      []domain.CliRecord

	test    *domain.LoadTestConfig
	started time.Time
	ended   time.Time
	stopped bool
}

// StaticOption configures a StaticSource.
type StaticOption func(*StaticSource)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) StaticOption {
	return func(s *StaticSource) { s.now = now }
}

// WithLimits replaces the seeded daily limits.
func WithLimits(limits map[string]int) StaticOption {
	return func(s *StaticSource) { s.limits = maps.Clone(limits) }
}

// WithUsage replaces the seeded usage counters.
func WithUsage(usage map[string]int) StaticOption {
	return func(s *StaticSource) { s.usage = maps.Clone(usage) }
}

// WithCLIs replaces the generated number pool.
func WithCLIs(records []domain.CliRecord) StaticOption {
	return func(s *StaticSource) { s.clis = append([]domain.CliRecord(nil), records...) }
}

// NewStaticSource returns a source seeded with a small demo data set.
func NewStaticSource(opts ...StaticOption) *StaticSource {
	s := &StaticSource{
		now:       time.Now,
		limits:    map[string]int{"usa": 1000, "canada": 500, "mexico": 300, "colombia": 0},
		usage:     map[string]int{"usa": 720, "canada": 120, "mexico": 285, "colombia": 40},
		overrides: map[string]domain.DtmfCountryConfig{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clis == nil {
		s.clis = seedCLIs(s.now())
	}
	return s
}

// RegisterStatic registers the in-memory source factory.
func RegisterStatic() {
	Register("static", func(Settings) (domain.Source, error) {
		return NewStaticSource(), nil
	})
}

// seedCLIs builds a deterministic pool spread across the seeded countries
// and two carriers.
func seedCLIs(now time.Time) []domain.CliRecord {
	type seed struct {
		country string
		prefix  string
		count   int
	}
	seeds := []seed{
		{"usa", "+1202555", 8},
		{"canada", "+1416555", 4},
		{"mexico", "+5255550", 5},
		{"colombia", "+5760155", 3},
	}
	carriers := []string{"twilio", "telnyx"}
	created := now.Add(-30 * 24 * time.Hour).Truncate(time.Hour)

	var out []domain.CliRecord
	n := 0
	for _, sd := range seeds {
		for i := range sd.count {
			n++
			r := domain.CliRecord{
				ID:          fmt.Sprintf("cli-%03d", n),
				PhoneNumber: fmt.Sprintf("%s%04d", sd.prefix, 100+i),
				Country:     sd.country,
				Provider:    carriers[n%len(carriers)],
				UsageCount:  (n * 37) % 120,
				SuccessRate: 0.75 + float64(n%5)*0.05,
				CreatedAt:   created.Add(time.Duration(n) * time.Hour),
			}
			if r.UsageCount > 0 {
				r.LastUsed = now.Add(-time.Duration(n) * time.Minute).Truncate(time.Second)
			}
			if n%11 == 0 {
				r.Status = domain.CliStatusBlocked
			}
			out = append(out, r)
		}
	}
	return out
}

func (s *StaticSource) GetDisplayName() string {
	return "Static demo data"
}

// --- Load test ---

func (s *StaticSource) StartLoadTest(_ context.Context, cfg domain.LoadTestConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runningLocked() {
		return &domain.ServerError{Op: "start load test", Status: http.StatusConflict, Message: "a load test is already running"}
	}
	cfg.CountriesToTest = append([]string(nil), cfg.CountriesToTest...)
	s.test = &cfg
	s.started = s.now()
	s.ended = time.Time{}
	s.stopped = false
	return nil
}

func (s *StaticSource) StopLoadTest(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.runningLocked() {
		return &domain.ServerError{Op: "stop load test", Status: http.StatusConflict, Message: "no load test is running"}
	}
	s.stopped = true
	s.ended = s.now()
	return nil
}

// runningLocked reports whether the simulated test is still in progress.
// It settles ended once the configured duration has elapsed.
func (s *StaticSource) runningLocked() bool {
	if s.test == nil || s.stopped || !s.ended.IsZero() {
		return false
	}
	end := s.started.Add(time.Duration(s.test.DurationMinutes) * time.Minute)
	if !s.now().Before(end) {
		s.ended = end
		return false
	}
	return true
}

func (s *StaticSource) LoadTestStatus(context.Context) (*domain.LoadTestStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.runningLocked() {
		return &domain.LoadTestStatus{}, nil
	}
	elapsed := s.now().Sub(s.started)
	cps := s.cpsAt(elapsed)
	return &domain.LoadTestStatus{
		IsRunning:       true,
		CurrentCPS:      cps,
		ConcurrentCalls: int(math.Round(cps * staticCallSeconds)),
		SuccessRate:     staticSuccessRate,
		Errors:          int(elapsed / staticErrorEvery),
	}, nil
}

func (s *StaticSource) cpsAt(elapsed time.Duration) float64 {
	target := s.test.TargetCPS
	if elapsed >= staticRampUp {
		return target
	}
	return math.Round(target*float64(elapsed)/float64(staticRampUp)*100) / 100
}

func (s *StaticSource) LoadTestResults(context.Context) (*domain.LoadTestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultsLocked()
}

func (s *StaticSource) resultsLocked() (*domain.LoadTestResult, error) {
	if s.test == nil {
		return nil, &domain.ServerError{Op: "get load test results", Status: http.StatusNotFound, Message: "no load test has run"}
	}
	end := s.now()
	if !s.runningLocked() {
		end = s.ended
	}
	elapsed := end.Sub(s.started)

	// Average over a linear ramp followed by a flat plateau.
	target := s.test.TargetCPS
	var avg float64
	if elapsed > 0 {
		ramp := min(elapsed, staticRampUp)
		area := target*ramp.Seconds()/2*float64(ramp)/float64(staticRampUp) + target*(elapsed-ramp).Seconds()
		avg = math.Round(area/elapsed.Seconds()*100) / 100
	}
	return &domain.LoadTestResult{
		AvgCPS:             avg,
		MaxCPS:             s.cpsAt(elapsed),
		MaxConcurrent:      int(math.Round(s.cpsAt(elapsed) * staticCallSeconds)),
		OverallSuccessRate: staticSuccessRate,
		TotalErrors:        int(elapsed / staticErrorEvery),
		Duration:           elapsed.Seconds(),
	}, nil
}

func (s *StaticSource) ExportLoadTestResults(_ context.Context, format string) ([]byte, error) {
	s.mu.Lock()
	res, err := s.resultsLocked()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return loadtest.Export(res, format)
}

// --- Quotas ---

func (s *StaticSource) CliLimits(context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.limits), nil
}

func (s *StaticSource) SetCliLimit(_ context.Context, country string, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits[util.NormalizeKey(country)] = limit
	return nil
}

func (s *StaticSource) CliUsage(context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.usage), nil
}

func (s *StaticSource) ResetCliUsage(_ context.Context, country string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := util.NormalizeKey(country)
	for c := range s.usage {
		if key == "" || c == key {
			s.usage[c] = 0
		}
	}
	for i := range s.clis {
		if key == "" || s.clis[i].Country == key {
			s.clis[i].UsageCount = 0
		}
	}
	return nil
}

// --- DTMF ---

func (s *StaticSource) DtmfConfigs(context.Context) (map[string]domain.DtmfCountryConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.overrides), nil
}

func (s *StaticSource) SaveDtmfConfig(_ context.Context, cfg domain.DtmfCountryConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.Country = util.NormalizeKey(cfg.Country)
	s.overrides[cfg.Country] = cfg
	return nil
}

func (s *StaticSource) ResetDtmfConfig(_ context.Context, country string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overrides, util.NormalizeKey(country))
	return nil
}

// --- CLI inventory ---

func (s *StaticSource) ListCLIs(context.Context) ([]domain.CliRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CliRecord(nil), s.clis...), nil
}
