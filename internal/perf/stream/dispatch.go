package stream

import (
	"context"

	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/perf/history"
	"nathanbeddoewebdev/dialctl/internal/telemetry"
)

// Handlers receives dispatched events. Every field is optional.
type Handlers struct {
	History *history.Buffer[domain.MetricSample]
	Metrics *telemetry.Metrics

	OnSample     func(domain.MetricSample)
	OnTestStatus func(TestStatusEvent)
	OnCliStats   func(CliStatsEvent)
	OnState      func(StateEvent)
}

// Dispatch consumes events in arrival order until the channel closes or
// ctx ends. Metric samples are appended to the history buffer before any
// callback sees them.
func Dispatch(ctx context.Context, events <-chan Event, h Handlers) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			DispatchOne(ev, h)
		}
	}
}

// DispatchOne routes a single event. The dashboard calls it from its own
// event loop.
func DispatchOne(ev Event, h Handlers) {
	switch e := ev.(type) {
	case MetricEvent:
		if h.History != nil {
			h.History.Append(e.Sample)
		}
		h.Metrics.CountMessage(TypeMetrics)
		h.Metrics.ObserveSample(e.Sample)
		if h.OnSample != nil {
			h.OnSample(e.Sample)
		}
	case TestStatusEvent:
		h.Metrics.CountMessage(TypeTestStatus)
		if h.OnTestStatus != nil {
			h.OnTestStatus(e)
		}
	case CliStatsEvent:
		h.Metrics.CountMessage(TypeCliStats)
		if h.OnCliStats != nil {
			h.OnCliStats(e)
		}
	case StateEvent:
		if h.OnState != nil {
			h.OnState(e)
		}
	}
}
