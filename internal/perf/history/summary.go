package history

import (
	"time"

	"nathanbeddoewebdev/dialctl/internal/perf/domain"
)

// Summary holds peak and average values over a window of metric samples.
type Summary struct {
	SampleCount int           `json:"sample_count"`
	Window      time.Duration `json:"window"`

	PeakCPS float64 `json:"peak_cps"`
	AvgCPS  float64 `json:"avg_cps"`

	PeakConcurrent int     `json:"peak_concurrent"`
	AvgConcurrent  float64 `json:"avg_concurrent"`

	AvgSuccessRate float64 `json:"avg_success_rate"`
	MinSuccessRate float64 `json:"min_success_rate"`
}

// Summarize computes a Summary over samples, which are expected oldest
// first (as returned by Buffer.Snapshot).
func Summarize(samples []domain.MetricSample) Summary {
	s := Summary{SampleCount: len(samples)}
	if len(samples) == 0 {
		return s
	}

	s.Window = samples[len(samples)-1].Timestamp.Sub(samples[0].Timestamp)
	s.MinSuccessRate = samples[0].SuccessRate

	var cps, concurrent, success float64
	for _, m := range samples {
		cps += m.CPS
		concurrent += float64(m.ConcurrentCalls)
		success += m.SuccessRate

		if m.CPS > s.PeakCPS {
			s.PeakCPS = m.CPS
		}
		if m.ConcurrentCalls > s.PeakConcurrent {
			s.PeakConcurrent = m.ConcurrentCalls
		}
		if m.SuccessRate < s.MinSuccessRate {
			s.MinSuccessRate = m.SuccessRate
		}
	}

	n := float64(len(samples))
	s.AvgCPS = cps / n
	s.AvgConcurrent = concurrent / n
	s.AvgSuccessRate = success / n
	return s
}

// Series projects a float series out of a snapshot, for charting.
func Series[T any](items []T, value func(T) float64) []float64 {
	out := make([]float64, len(items))
	for i, it := range items {
		out[i] = value(it)
	}
	return out
}
