package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SweeperMetrics records metadata for the guest-cart sweep job.
type SweeperMetrics struct {
	duration *prometheus.HistogramVec
	swept    prometheus.Counter
	failure  *prometheus.CounterVec
}

// NewSweeperMetrics registers the sweeper metrics on the provided registerer.
func NewSweeperMetrics(reg prometheus.Registerer) *SweeperMetrics {
	if reg == nil {
		return &SweeperMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sweep_duration_seconds",
		Help:    "Duration of sweep runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	swept := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweep_removed_carts_total",
		Help: "Expired guest carts removed by the sweeper.",
	})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweep_failure_total",
		Help: "Failed sweep executions.",
	}, []string{"job"})
	reg.MustRegister(duration, swept, failure)
	return &SweeperMetrics{
		duration: duration,
		swept:    swept,
		failure:  failure,
	}
}

// ObserveDuration records the duration for the named job.
func (s *SweeperMetrics) ObserveDuration(job string, duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// AddSwept counts removed guest carts.
func (s *SweeperMetrics) AddSwept(count int) {
	if s == nil || s.swept == nil || count <= 0 {
		return
	}
	s.swept.Add(float64(count))
}

// IncFailure increments the failure counter for the named job.
func (s *SweeperMetrics) IncFailure(job string) {
	if s == nil || s.failure == nil {
		return
	}
	s.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

func normalizeLabel(value string) string {
	label := strings.TrimSpace(strings.ToLower(value))
	if label == "" {
		return "unknown"
	}
	return strings.ReplaceAll(label, " ", "_")
}
