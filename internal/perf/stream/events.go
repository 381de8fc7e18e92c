package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"nathanbeddoewebdev/dialctl/internal/perf/domain"

	"github.com/tidwall/gjson"
)

// Message type discriminators on the wire.
const (
	TypeMetrics    = "metrics"
	TypeTestStatus = "test_status"
	TypeCliStats   = "cli_stats"
)

// State is the connection lifecycle state reported through StateEvent.
type State string

const (
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
	StateError      State = "error"

	// StateDisabled means the client is ready but will never deliver live
	// data because the host is restricted.
	StateDisabled State = "disabled"
)

// Event is anything delivered on the client's event channel.
type Event interface {
	Kind() string
}

// MetricEvent carries one metrics push.
type MetricEvent struct {
	Sample domain.MetricSample
}

// TestStatusEvent carries a load-test state change pushed by the server.
type TestStatusEvent struct {
	Running bool
	Results *domain.LoadTestResult
}

// CliStatsEvent carries the free-form CLI pool statistics payload.
type CliStatsEvent struct {
	Data map[string]any
}

// StateEvent reports a lifecycle transition. Err is set for closed and
// error states when a cause is known.
type StateEvent struct {
	State State
	Err   error
}

func (MetricEvent) Kind() string     { return TypeMetrics }
func (TestStatusEvent) Kind() string { return TypeTestStatus }
func (CliStatsEvent) Kind() string   { return TypeCliStats }
func (StateEvent) Kind() string      { return "state" }

var (
	errInvalidJSON = errors.New("invalid JSON")
	errMissingData = errors.New(`missing "data" object`)
)

// decode turns one wire message into an Event. now stamps samples that
// arrive without a timestamp.
func decode(data []byte, now time.Time) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, &domain.ParseError{Payload: string(data), Err: errInvalidJSON}
	}

	kind := gjson.GetBytes(data, "type").String()
	switch kind {
	case TypeMetrics:
		raw := gjson.GetBytes(data, "data")
		if !raw.IsObject() {
			return nil, &domain.ParseError{Payload: string(data), Err: errMissingData}
		}
		var sample domain.MetricSample
		if err := json.Unmarshal([]byte(raw.Raw), &sample); err != nil {
			return nil, &domain.ParseError{Payload: string(data), Err: err}
		}
		if sample.Timestamp.IsZero() {
			sample.Timestamp = now
		}
		return MetricEvent{Sample: sample}, nil

	case TypeTestStatus:
		running := gjson.GetBytes(data, "running")
		if running.Type != gjson.True && running.Type != gjson.False {
			return nil, &domain.ParseError{Payload: string(data), Err: errors.New(`"running" must be a boolean`)}
		}
		ev := TestStatusEvent{Running: running.Bool()}
		if results := gjson.GetBytes(data, "results"); results.IsObject() {
			var r domain.LoadTestResult
			if err := json.Unmarshal([]byte(results.Raw), &r); err != nil {
				return nil, &domain.ParseError{Payload: string(data), Err: err}
			}
			ev.Results = &r
		}
		return ev, nil

	case TypeCliStats:
		raw := gjson.GetBytes(data, "data")
		if !raw.IsObject() {
			return nil, &domain.ParseError{Payload: string(data), Err: errMissingData}
		}
		var stats map[string]any
		if err := json.Unmarshal([]byte(raw.Raw), &stats); err != nil {
			return nil, &domain.ParseError{Payload: string(data), Err: err}
		}
		return CliStatsEvent{Data: stats}, nil
	}

	return nil, &domain.ParseError{Payload: string(data), Err: fmt.Errorf("unknown message type %q", kind)}
}
