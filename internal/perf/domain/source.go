package domain

import "context"

// Export formats understood by the results endpoint and by local export.
const (
	FormatJSON  = "json"
	FormatCSV   = "csv"
	FormatExcel = "excel"
)

// LoadTestRunner drives the external synthetic test runner.
type LoadTestRunner interface {
	StartLoadTest(ctx context.Context, cfg LoadTestConfig) error
	StopLoadTest(ctx context.Context) error
	LoadTestStatus(ctx context.Context) (*LoadTestStatus, error)
	LoadTestResults(ctx context.Context) (*LoadTestResult, error)

	// ExportLoadTestResults returns the raw file produced server-side for
	// format ("csv" or "excel").
	ExportLoadTestResults(ctx context.Context, format string) ([]byte, error)
}

// QuotaStore persists per-country CLI limits and usage counters.
type QuotaStore interface {
	CliLimits(ctx context.Context) (map[string]int, error)
	SetCliLimit(ctx context.Context, country string, limit int) error
	CliUsage(ctx context.Context) (map[string]int, error)

	// ResetCliUsage zeroes usage for country, or for every country when
	// country is empty.
	ResetCliUsage(ctx context.Context, country string) error
}

// DtmfStore persists DTMF menu overrides.
type DtmfStore interface {
	DtmfConfigs(ctx context.Context) (map[string]DtmfCountryConfig, error)
	SaveDtmfConfig(ctx context.Context, cfg DtmfCountryConfig) error
	ResetDtmfConfig(ctx context.Context, country string) error
}

// CliInventory lists the caller-ID numbers in the rotation pool.
type CliInventory interface {
	ListCLIs(ctx context.Context) ([]CliRecord, error)
}

// Source is everything the console reads from or writes to. A live REST
// client and a static in-memory data set both implement it.
type Source interface {
	GetDisplayName() string
	LoadTestRunner
	QuotaStore
	DtmfStore
	CliInventory
}

// ConfirmFunc asks the operator to approve a destructive action. It
// returns false when the operator declines.
type ConfirmFunc func(prompt string) (bool, error)

// Confirmed is a ConfirmFunc that always approves. Use it for
// non-interactive callers that already obtained consent (e.g. --yes).
func Confirmed(string) (bool, error) { return true, nil }
