package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess         = "success"
	OutcomeInvalid         = "invalid"
	OutcomeToolUnavailable = "tool_unavailable"
	OutcomeFailed          = "failed"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lookingglass",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lookingglass",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	diagnosticRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lookingglass",
			Subsystem: "diagnostics",
			Name:      "runs_total",
			Help:      "Diagnostic invocations by kind and outcome.",
		},
		[]string{"node", "kind", "outcome"},
	)
	diagnosticDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lookingglass",
			Subsystem: "diagnostics",
			Name:      "duration_seconds",
			Help:      "Diagnostic wall-clock duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 15, 30, 60},
		},
		[]string{"node", "kind", "outcome"},
	)
	heartbeats = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lookingglass",
			Subsystem: "agent",
			Name:      "heartbeats_sent_total",
			Help:      "Heartbeats sent to the panel, by success.",
		},
		[]string{"success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, diagnosticRuns, diagnosticDuration, heartbeats)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordDiagnostic(node, kind, outcome string, duration time.Duration) {
	RegisterMetrics()
	diagnosticRuns.WithLabelValues(node, kind, outcome).Inc()
	diagnosticDuration.WithLabelValues(node, kind, outcome).Observe(duration.Seconds())
}

func RecordHeartbeat(success bool) {
	RegisterMetrics()
	heartbeats.WithLabelValues(strconv.FormatBool(success)).Inc()
}
