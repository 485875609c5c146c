package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors exported on /metrics. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	jobsTotal   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	activeJobs  prometheus.Gauge
	bridgeCalls *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		jobsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resample",
			Name:      "jobs_total",
			Help:      "Finished jobs by kind and final status.",
		}, []string{"kind", "status"}),
		jobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "resample",
			Name:      "job_duration_seconds",
			Help:      "Wall time of finished jobs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"kind"}),
		activeJobs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "resample",
			Name:      "active_jobs",
			Help:      "Jobs currently running (0 or 1).",
		}),
		bridgeCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resample",
			Name:      "bridge_calls_total",
			Help:      "Bridge invocations by command and result.",
		}, []string{"command", "result"}),
	}
}

func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.activeJobs.Inc()
}

func (m *Metrics) JobFinished(kind, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.activeJobs.Dec()
	m.jobsTotal.WithLabelValues(kind, status).Inc()
	m.jobDuration.WithLabelValues(kind).Observe(took.Seconds())
}

// BridgeCall records one invocation. Its signature matches bridge.Registry.OnCall.
func (m *Metrics) BridgeCall(command string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.bridgeCalls.WithLabelValues(command, result).Inc()
}
