package runstore

import (
	"time"

	"nathanbeddoewebdev/dialctl/internal/perf/domain"
)

// Run is a persisted load-test run. It lets `dialctl loadtest runs` show
// what was started from this machine and how each run ended.
type Run struct {
	// ID is a random UUID assigned when the run is first saved.
	ID string `json:"id"`

	// Source is the name of the backend the run was started against
	// (e.g. "api").
	Source string `json:"source"`

	Config domain.LoadTestConfig `json:"config"`

	// State is the controller state the run was last seen in
	// ("starting", "running", "completed", "stopped", "failed").
	State string `json:"state"`

	// Result is set once results have been fetched.
	Result *domain.LoadTestResult `json:"result,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the run had not reached a terminal state when it
// was last saved.
func (r *Run) Active() bool {
	return r.State == "starting" || r.State == "running"
}
