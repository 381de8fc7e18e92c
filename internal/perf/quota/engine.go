// Package quota caches per-country CLI limits and usage and classifies
// them into tiers.
package quota

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/telemetry"
	"nathanbeddoewebdev/dialctl/internal/util"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Summary aggregates the cached quotas.
type Summary struct {
	Limited   int `json:"limited"`
	Unlimited int `json:"unlimited"`
	TotalUsed int `json:"total_used"`
	Critical  int `json:"critical"`
}

// Engine is the CLI quota cache. The cache only changes after the store
// confirms a write, so a failed call never leaves it out of sync.
type Engine struct {
	store   domain.QuotaStore
	log     zerolog.Logger
	metrics *telemetry.Metrics

	mu     sync.RWMutex
	limits map[string]int
	usage  map[string]int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics exports per-country usage gauges on every refresh.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine with an empty cache.
func New(store domain.QuotaStore, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		log:    zerolog.Nop(),
		limits: make(map[string]int),
		usage:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Refresh fetches limits and usage concurrently. If either request fails
// the cache is left as it was.
func (e *Engine) Refresh(ctx context.Context) error {
	var limits, usage map[string]int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		limits, err = e.store.CliLimits(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		usage, err = e.store.CliUsage(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		e.log.Warn().Err(err).Msg("quota refresh failed")
		return err
	}

	e.mu.Lock()
	e.limits = normalize(limits)
	e.usage = normalize(usage)
	e.mu.Unlock()

	for _, q := range e.Quotas() {
		e.metrics.ObserveQuota(q)
	}
	return nil
}

func normalize(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[util.NormalizeKey(k)] = v
	}
	return out
}

// Quota returns the cached quota for country. ok is false when the
// country has neither a limit nor usage.
func (e *Engine) Quota(country string) (q domain.CliCountryQuota, ok bool) {
	key := util.NormalizeKey(country)

	e.mu.RLock()
	defer e.mu.RUnlock()
	limit, hasLimit := e.limits[key]
	used, hasUsage := e.usage[key]
	return domain.CliCountryQuota{Country: key, DailyLimit: limit, Used: used}, hasLimit || hasUsage
}

// Quotas returns every cached quota, sorted by country.
func (e *Engine) Quotas() []domain.CliCountryQuota {
	e.mu.RLock()
	defer e.mu.RUnlock()

	keys := make(map[string]struct{}, len(e.limits))
	for k := range e.limits {
		keys[k] = struct{}{}
	}
	for k := range e.usage {
		keys[k] = struct{}{}
	}

	countries := slices.Sorted(maps.Keys(keys))
	out := make([]domain.CliCountryQuota, 0, len(countries))
	for _, c := range countries {
		out = append(out, domain.CliCountryQuota{Country: c, DailyLimit: e.limits[c], Used: e.usage[c]})
	}
	return out
}

// Limit returns the cached daily limit for country (0 when unlimited or
// unknown).
func (e *Engine) Limit(country string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.limits[util.NormalizeKey(country)]
}

// UsagePercentage returns the usage of country as a percentage of its
// limit, clamped to [0,100]. Unlimited countries report 0.
func (e *Engine) UsagePercentage(country string) float64 {
	q, _ := e.Quota(country)
	return domain.UsagePercent(q.Used, q.DailyLimit)
}

// Tier classifies the usage of country.
func (e *Engine) Tier(country string) domain.Tier {
	q, _ := e.Quota(country)
	return domain.ClassifyUsage(q.Used, q.DailyLimit)
}

// Status returns the CLI status implied by the usage of country.
func (e *Engine) Status(country string) domain.CliStatus {
	return e.Tier(country).CliStatus()
}

// SetLimit persists a new daily limit for country. Zero means unlimited.
func (e *Engine) SetLimit(ctx context.Context, country string, limit int) error {
	key := util.NormalizeKey(country)

	v := domain.NewValidator("set CLI limit")
	v.Check(key != "", "country", "is required")
	v.Check(limit >= 0, "daily_limit", "must not be negative, got %d", limit)
	if err := v.Err(); err != nil {
		return err
	}

	if err := e.store.SetCliLimit(ctx, key, limit); err != nil {
		return err
	}

	e.mu.Lock()
	e.limits[key] = limit
	q := domain.CliCountryQuota{Country: key, DailyLimit: limit, Used: e.usage[key]}
	e.mu.Unlock()

	e.metrics.ObserveQuota(q)
	e.log.Info().Str("country", key).Int("daily_limit", limit).Msg("CLI limit updated")
	return nil
}

// ResetUsage zeroes usage for country, or for every country when country
// is empty. confirm is asked first; a decline returns domain.ErrCancelled
// and a nil confirm domain.ErrNoConfirm, both without contacting the store.
func (e *Engine) ResetUsage(ctx context.Context, country string, confirm domain.ConfirmFunc) error {
	key := util.NormalizeKey(country)

	prompt := "Reset CLI usage for all countries?"
	if key != "" {
		prompt = fmt.Sprintf("Reset CLI usage for %s?", strings.ToUpper(key))
	}
	if confirm == nil {
		return fmt.Errorf("reset CLI usage: %w", domain.ErrNoConfirm)
	}
	ok, err := confirm(prompt)
	if err != nil {
		return fmt.Errorf("reset CLI usage: %w", err)
	}
	if !ok {
		return fmt.Errorf("reset CLI usage: %w", domain.ErrCancelled)
	}

	if err := e.store.ResetCliUsage(ctx, key); err != nil {
		return err
	}

	e.mu.Lock()
	if key == "" {
		for k := range e.usage {
			e.usage[k] = 0
		}
	} else {
		e.usage[key] = 0
	}
	e.mu.Unlock()

	e.log.Info().Str("country", key).Msg("CLI usage reset")
	return nil
}

// Summary derives aggregate counts from the cache.
func (e *Engine) Summary() Summary {
	var s Summary
	for _, q := range e.Quotas() {
		if q.DailyLimit > 0 {
			s.Limited++
		} else {
			s.Unlimited++
		}
		s.TotalUsed += q.Used
		if domain.ClassifyUsage(q.Used, q.DailyLimit) == domain.TierCritical {
			s.Critical++
		}
	}
	return s
}
