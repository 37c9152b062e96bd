package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records order pipeline outcomes.
type CheckoutMetrics struct {
	duration  *prometheus.HistogramVec
	orders    *prometheus.CounterVec
	rollbacks prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout pipeline runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_orders_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome"})
	rollbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_reservation_rollbacks_total",
		Help: "Reservation rollbacks triggered by downstream failures.",
	})
	reg.MustRegister(duration, orders, rollbacks)
	return &CheckoutMetrics{
		duration:  duration,
		orders:    orders,
		rollbacks: rollbacks,
	}
}

// ObserveDuration records the pipeline duration for the given outcome.
func (c *CheckoutMetrics) ObserveDuration(outcome string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncOrder counts one checkout attempt by outcome.
func (c *CheckoutMetrics) IncOrder(outcome string) {
	if c == nil || c.orders == nil {
		return
	}
	c.orders.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncRollback counts one compensating reservation release.
func (c *CheckoutMetrics) IncRollback() {
	if c == nil || c.rollbacks == nil {
		return
	}
	c.rollbacks.Inc()
}
