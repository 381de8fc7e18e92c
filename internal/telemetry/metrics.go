// Package telemetry exports the console's live view of the dialer as
// Prometheus gauges, so an operator's scrape target can mirror what the
// dashboard shows.
package telemetry

import (
	"net/http"

	"nathanbeddoewebdev/dialctl/internal/perf/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every gauge and counter dialctl exports.
type Metrics struct {
	registry *prometheus.Registry

	// Live stream
	CurrentCPS      prometheus.Gauge
	ConcurrentCalls prometheus.Gauge
	SuccessRate     prometheus.Gauge
	ActiveCLIs      prometheus.Gauge
	BlockedCLIs     prometheus.Gauge
	StreamMessages  *prometheus.CounterVec

	// Load test
	LoadTestRunning    prometheus.Gauge
	LoadTestTargetCPS  prometheus.Gauge
	LoadTestCurrentCPS prometheus.Gauge
	LoadTestErrors     prometheus.Gauge

	// Quotas
	QuotaUsagePercent *prometheus.GaugeVec
}

// New registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CurrentCPS: f.NewGauge(prometheus.GaugeOpts{
			Name: "dialctl_stream_cps",
			Help: "Calls per second reported by the latest stream sample",
		}),
		ConcurrentCalls: f.NewGauge(prometheus.GaugeOpts{
			Name: "dialctl_stream_concurrent_calls",
			Help: "Concurrent calls reported by the latest stream sample",
		}),
		SuccessRate: f.NewGauge(prometheus.GaugeOpts{
			Name: "dialctl_stream_success_rate_percent",
			Help: "Call success rate (0-100) reported by the latest stream sample",
		}),
		ActiveCLIs: f.NewGauge(prometheus.GaugeOpts{
			Name: "dialctl_stream_active_clis",
			Help: "Active caller-ID numbers reported by the latest stream sample",
		}),
		BlockedCLIs: f.NewGauge(prometheus.GaugeOpts{
			Name: "dialctl_stream_blocked_clis",
			Help: "Blocked caller-ID numbers reported by the latest stream sample",
		}),
		StreamMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dialctl_stream_messages_total",
			Help: "Stream messages received, by type",
		}, []string{"type"}),
		LoadTestRunning: f.NewGauge(prometheus.GaugeOpts{
			Name: "dialctl_loadtest_running",
			Help: "Whether a load test is currently running (1 = running)",
		}),
		LoadTestTargetCPS: f.NewGauge(prometheus.GaugeOpts{
			Name: "dialctl_loadtest_target_cps",
			Help: "Target calls per second of the current load test",
		}),
		LoadTestCurrentCPS: f.NewGauge(prometheus.GaugeOpts{
			Name: "dialctl_loadtest_current_cps",
			Help: "Calls per second from the latest load test poll",
		}),
		LoadTestErrors: f.NewGauge(prometheus.GaugeOpts{
			Name: "dialctl_loadtest_errors",
			Help: "Errors reported by the latest load test poll",
		}),
		QuotaUsagePercent: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dialctl_cli_quota_usage_percent",
			Help: "Daily CLI usage as a percentage of the country limit",
		}, []string{"country"}),
	}
}

// Registry returns the underlying registry (for tests and custom handlers).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSample updates the stream gauges from a metric sample.
func (m *Metrics) ObserveSample(s domain.MetricSample) {
	if m == nil {
		return
	}
	m.CurrentCPS.Set(s.CPS)
	m.ConcurrentCalls.Set(float64(s.ConcurrentCalls))
	m.SuccessRate.Set(s.SuccessRate)
	m.ActiveCLIs.Set(float64(s.ActiveCLIs))
	m.BlockedCLIs.Set(float64(s.BlockedCLIs))
}

// CountMessage increments the per-type stream message counter.
func (m *Metrics) CountMessage(kind string) {
	if m == nil {
		return
	}
	m.StreamMessages.WithLabelValues(kind).Inc()
}

// ObserveLoadTest updates the load-test gauges from a status poll.
func (m *Metrics) ObserveLoadTest(st domain.LoadTestStatus) {
	if m == nil {
		return
	}
	m.LoadTestRunning.Set(boolGauge(st.IsRunning))
	m.LoadTestCurrentCPS.Set(st.CurrentCPS)
	m.LoadTestErrors.Set(float64(st.Errors))
}

// SetLoadTestTarget records the target CPS of a newly started test.
func (m *Metrics) SetLoadTestTarget(cps float64) {
	if m == nil {
		return
	}
	m.LoadTestTargetCPS.Set(cps)
	m.LoadTestRunning.Set(1)
}

// LoadTestEnded marks the load test as no longer running.
func (m *Metrics) LoadTestEnded() {
	if m == nil {
		return
	}
	m.LoadTestRunning.Set(0)
}

// ObserveQuota updates the usage gauge for one country.
func (m *Metrics) ObserveQuota(q domain.CliCountryQuota) {
	if m == nil {
		return
	}
	m.QuotaUsagePercent.WithLabelValues(q.Country).Set(domain.UsagePercent(q.Used, q.DailyLimit))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
