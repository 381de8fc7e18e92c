package loadtest

import (
	"strings"

	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/util"
)

// Load-test bounds enforced before anything is sent to the runner.
const (
	MinTargetCPS = 1

	// DefaultCPSCeiling is the highest target CPS accepted unless the
	// operator lowered it with the cps-ceiling config key.
	DefaultCPSCeiling = 100

	MinDurationMinutes = 1
	MaxDurationMinutes = 120

	MinNumberOfCLIs = 10
	MaxNumberOfCLIs = 50000
)

// Validate reports every bound cfg violates. ceiling is the maximum target
// CPS; a non-positive ceiling means DefaultCPSCeiling.
func Validate(cfg domain.LoadTestConfig, ceiling float64) error {
	if ceiling <= 0 {
		ceiling = DefaultCPSCeiling
	}

	v := domain.NewValidator("start load test")
	v.Check(cfg.TargetCPS >= MinTargetCPS && cfg.TargetCPS <= ceiling,
		"target_cps", "must be between %d and %g, got %g", MinTargetCPS, ceiling, cfg.TargetCPS)
	v.Check(cfg.DurationMinutes >= MinDurationMinutes && cfg.DurationMinutes <= MaxDurationMinutes,
		"duration_minutes", "must be between %d and %d, got %d", MinDurationMinutes, MaxDurationMinutes, cfg.DurationMinutes)
	v.Check(cfg.NumberOfCLIs >= MinNumberOfCLIs && cfg.NumberOfCLIs <= MaxNumberOfCLIs,
		"number_of_clis", "must be between %d and %d, got %d", MinNumberOfCLIs, MaxNumberOfCLIs, cfg.NumberOfCLIs)
	v.Check(len(cfg.CountriesToTest) > 0, "countries_to_test", "at least one country is required")

	for _, c := range cfg.CountriesToTest {
		if strings.TrimSpace(c) == "" {
			v.Check(false, "countries_to_test", "country codes must not be blank")
			break
		}
	}
	return v.Err()
}

// Normalize lowercases and trims country codes and drops duplicates,
// keeping first-seen order.
func Normalize(cfg domain.LoadTestConfig) domain.LoadTestConfig {
	seen := make(map[string]struct{}, len(cfg.CountriesToTest))
	countries := make([]string, 0, len(cfg.CountriesToTest))
	for _, c := range cfg.CountriesToTest {
		key := util.NormalizeKey(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		countries = append(countries, key)
	}
	cfg.CountriesToTest = countries
	return cfg
}
