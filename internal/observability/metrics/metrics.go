package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// ConsoleMetrics exposes counters/histograms for console actions and backend calls.
type ConsoleMetrics struct {
	actionsTotal   *prometheus.CounterVec
	backendTotal   *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec
}

func NewConsoleMetrics(reg prometheus.Registerer) *ConsoleMetrics {
	m := &ConsoleMetrics{
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opd",
			Subsystem: "console",
			Name:      "actions_total",
			Help:      "Total operator actions handled by the console",
		}, []string{"action", "outcome"}),
		backendTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opd",
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Total requests sent to the booking backend",
		}, []string{"operation", "status"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "opd",
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Latency of booking backend requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.actionsTotal, m.backendTotal, m.backendLatency)
	return m
}

// ObserveAction counts one console action with its outcome ("ok", "failed", "skipped").
func (m *ConsoleMetrics) ObserveAction(action, outcome string) {
	if m == nil {
		return
	}
	m.actionsTotal.WithLabelValues(action, outcome).Inc()
}

// ObserveBackendCall records a backend request. A zero status means the
// request never produced a response.
func (m *ConsoleMetrics) ObserveBackendCall(operation string, status int, seconds float64) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.backendTotal.WithLabelValues(operation, label).Inc()
	m.backendLatency.WithLabelValues(operation).Observe(seconds)
}
