// Package dtmf holds the per-country in-call keypad menus: compiled-in
// defaults plus operator overrides stored by the backend.
package dtmf

import (
	"context"
	_ "embed"
	"fmt"
	"maps"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"sync"

	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/util"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Menu timeout bounds, in seconds.
const (
	MinMenuTimeout = 5
	MaxMenuTimeout = 60
)

var dtmfKeyPattern = regexp.MustCompile(`^[0-9]$`)

//go:embed defaults.yaml
var defaultsYAML []byte

var defaults = mustParseDefaults(defaultsYAML)

func mustParseDefaults(data []byte) map[string]domain.DtmfCountryConfig {
	m, err := ParseDefaults(data)
	if err != nil {
		panic(fmt.Sprintf("dtmf: invalid built-in defaults: %v", err))
	}
	return m
}

// ParseDefaults decodes a YAML list of country configs keyed by country.
func ParseDefaults(data []byte) (map[string]domain.DtmfCountryConfig, error) {
	var list []domain.DtmfCountryConfig
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	out := make(map[string]domain.DtmfCountryConfig, len(list))
	for _, cfg := range list {
		cfg.Country = util.NormalizeKey(cfg.Country)
		if err := Validate(cfg); err != nil {
			return nil, err
		}
		if _, dup := out[cfg.Country]; dup {
			return nil, fmt.Errorf("duplicate country %q", cfg.Country)
		}
		out[cfg.Country] = cfg
	}
	return out, nil
}

// Default returns the compiled-in config for country.
func Default(country string) (domain.DtmfCountryConfig, bool) {
	cfg, ok := defaults[util.NormalizeKey(country)]
	return cfg, ok
}

// Validate checks a config against the keypad and timeout rules.
func Validate(cfg domain.DtmfCountryConfig) error {
	v := domain.NewValidator("save DTMF config")
	v.Check(strings.TrimSpace(cfg.Country) != "", "country", "is required")
	v.Check(dtmfKeyPattern.MatchString(cfg.DtmfKey), "dtmf_key", "must be a single digit 0-9, got %q", cfg.DtmfKey)
	v.Check(cfg.MenuTimeout >= MinMenuTimeout && cfg.MenuTimeout <= MaxMenuTimeout,
		"menu_timeout", "must be between %d and %d seconds, got %d", MinMenuTimeout, MaxMenuTimeout, cfg.MenuTimeout)
	return v.Err()
}

// Registry merges the defaults with overrides from a DtmfStore.
type Registry struct {
	store    domain.DtmfStore
	defaults map[string]domain.DtmfCountryConfig
	log      zerolog.Logger

	mu        sync.RWMutex
	overrides map[string]domain.DtmfCountryConfig
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithDefaults replaces the compiled-in defaults.
func WithDefaults(d map[string]domain.DtmfCountryConfig) Option {
	return func(r *Registry) { r.defaults = maps.Clone(d) }
}

// New creates a registry with no overrides loaded.
func New(store domain.DtmfStore, opts ...Option) *Registry {
	r := &Registry{
		store:     store,
		defaults:  defaults,
		log:       zerolog.Nop(),
		overrides: make(map[string]domain.DtmfCountryConfig),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh loads overrides from the store. On error the current overrides
// are kept.
func (r *Registry) Refresh(ctx context.Context) error {
	configs, err := r.store.DtmfConfigs(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("DTMF refresh failed")
		return err
	}

	overrides := make(map[string]domain.DtmfCountryConfig, len(configs))
	for k, cfg := range configs {
		key := util.NormalizeKey(k)
		cfg.Country = key
		overrides[key] = cfg
	}

	r.mu.Lock()
	r.overrides = overrides
	r.mu.Unlock()
	return nil
}

// Effective returns the override for country if one exists, otherwise the
// default. ok is false when neither exists.
func (r *Registry) Effective(country string) (cfg domain.DtmfCountryConfig, ok bool) {
	key := util.NormalizeKey(country)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if o, found := r.overrides[key]; found {
		return o, true
	}
	cfg, ok = r.defaults[key]
	return cfg, ok
}

// Default returns this registry's default for country.
func (r *Registry) Default(country string) (domain.DtmfCountryConfig, bool) {
	cfg, ok := r.defaults[util.NormalizeKey(country)]
	return cfg, ok
}

// IsCustomized reports whether the effective config differs from the
// default.
func (r *Registry) IsCustomized(country string) bool {
	eff, _ := r.Effective(country)
	def, _ := r.Default(country)
	return !reflect.DeepEqual(eff, def)
}

// Countries returns every country with a default or an override, sorted.
func (r *Registry) Countries() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := maps.Clone(r.defaults)
	if keys == nil {
		keys = make(map[string]domain.DtmfCountryConfig)
	}
	maps.Copy(keys, r.overrides)
	return slices.Sorted(maps.Keys(keys))
}

// Save validates cfg and stores it as the override for its country. An
// invalid config is never sent, and the prior config stays in effect.
func (r *Registry) Save(ctx context.Context, cfg domain.DtmfCountryConfig) error {
	cfg.Country = util.NormalizeKey(cfg.Country)
	if err := Validate(cfg); err != nil {
		return err
	}

	if err := r.store.SaveDtmfConfig(ctx, cfg); err != nil {
		return err
	}

	r.mu.Lock()
	r.overrides[cfg.Country] = cfg
	r.mu.Unlock()

	r.log.Info().Str("country", cfg.Country).Str("dtmf_key", cfg.DtmfKey).Msg("DTMF config saved")
	return nil
}

// ResetToDefault clears the override for country after confirm approves.
// A decline returns domain.ErrCancelled and a nil confirm
// domain.ErrNoConfirm, both without contacting the store.
func (r *Registry) ResetToDefault(ctx context.Context, country string, confirm domain.ConfirmFunc) error {
	key := util.NormalizeKey(country)

	v := domain.NewValidator("reset DTMF config")
	v.Check(key != "", "country", "is required")
	if err := v.Err(); err != nil {
		return err
	}

	if confirm == nil {
		return fmt.Errorf("reset DTMF config: %w", domain.ErrNoConfirm)
	}
	ok, err := confirm(fmt.Sprintf("Reset DTMF menu for %s to the default?", strings.ToUpper(key)))
	if err != nil {
		return fmt.Errorf("reset DTMF config: %w", err)
	}
	if !ok {
		return fmt.Errorf("reset DTMF config: %w", domain.ErrCancelled)
	}

	if err := r.store.ResetDtmfConfig(ctx, key); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.overrides, key)
	r.mu.Unlock()

	r.log.Info().Str("country", key).Msg("DTMF config reset to default")
	return nil
}
