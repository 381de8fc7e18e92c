// Package domain holds the types shared by the performance control plane:
// metric samples, load-test configuration and results, CLI quotas and
// records, and DTMF menu configuration.
package domain

import "time"

// CountryCode identifies a dialing country by its lowercase slug
// (e.g. "usa", "mexico").
type CountryCode = string

// MetricSample is one push from the metrics stream. It is never mutated
// after it has been recorded.
type MetricSample struct {
	CPS             float64        `json:"cps"`
	ConcurrentCalls int            `json:"concurrent_calls"`
	SuccessRate     float64        `json:"success_rate"`
	AnsweredCalls   int            `json:"answered_calls"`
	TotalCalls      int            `json:"total_calls"`
	ActiveCLIs      int            `json:"active_clis"`
	BlockedCLIs     int            `json:"blocked_clis"`
	AvgCallDuration float64        `json:"avg_call_duration"`
	Countries       map[string]int `json:"countries,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
}

// LoadTestConfig is the operator's request for a synthetic load test.
type LoadTestConfig struct {
	TargetCPS       float64  `json:"target_cps"`
	DurationMinutes int      `json:"duration_minutes"`
	CountriesToTest []string `json:"countries_to_test"`
	NumberOfCLIs    int      `json:"number_of_clis"`
}

// LoadTestStatus is a single poll of the test runner. SuccessRate is a
// fraction in [0,1].
type LoadTestStatus struct {
	IsRunning       bool    `json:"is_running"`
	CurrentCPS      float64 `json:"current_cps"`
	ConcurrentCalls int     `json:"concurrent_calls"`
	SuccessRate     float64 `json:"success_rate"`
	Errors          int     `json:"errors"`
}

// LoadTestResult is the terminal snapshot produced once a test ends.
type LoadTestResult struct {
	AvgCPS             float64 `json:"avg_cps"`
	MaxCPS             float64 `json:"max_cps"`
	MaxConcurrent      int     `json:"max_concurrent"`
	OverallSuccessRate float64 `json:"overall_success_rate"`
	TotalErrors        int     `json:"total_errors"`
	Duration           float64 `json:"duration"`
}

// LoadTestPoint is one entry in the real-time series accumulated while a
// load test is running.
type LoadTestPoint struct {
	Timestamp       time.Time `json:"timestamp"`
	CPS             float64   `json:"cps"`
	ConcurrentCalls int       `json:"concurrent_calls"`
	SuccessRate     float64   `json:"success_rate"`
	Errors          int       `json:"errors"`
}

// CliCountryQuota is the daily CLI usage budget for one country.
// A DailyLimit of zero means unlimited.
type CliCountryQuota struct {
	Country    string `json:"country"`
	DailyLimit int    `json:"daily_limit"`
	Used       int    `json:"used"`
}

// CliStatus is the rotation status of a single caller-ID number.
type CliStatus string

const (
	CliStatusActive       CliStatus = "active"
	CliStatusHighUsage    CliStatus = "high_usage"
	CliStatusLimitReached CliStatus = "limit_reached"
	CliStatusBlocked      CliStatus = "blocked"
	CliStatusInactive     CliStatus = "inactive"
)

// Asserted reports whether the status is set externally rather than
// derived from usage.
func (s CliStatus) Asserted() bool {
	return s == CliStatusBlocked || s == CliStatusInactive
}

// CliRecord is one caller-ID number in the rotation pool.
type CliRecord struct {
	ID          string    `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	Country     string    `json:"country"`
	Provider    string    `json:"provider"`
	UsageCount  int       `json:"usage_count"`
	LastUsed    time.Time `json:"last_used"`
	SuccessRate float64   `json:"success_rate"`
	Status      CliStatus `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// DtmfCountryConfig is the in-call keypad menu for one country.
type DtmfCountryConfig struct {
	Country      string `json:"country" yaml:"country"`
	DtmfKey      string `json:"dtmf_key" yaml:"dtmf_key"`
	Message      string `json:"message" yaml:"message"`
	MenuTimeout  int    `json:"menu_timeout" yaml:"menu_timeout"`
	Language     string `json:"language" yaml:"language"`
	Instructions string `json:"instructions" yaml:"instructions"`
}
