package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	poolWaitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pool_acquire_wait_seconds",
			Help:      "Time spent waiting for a pooled resource",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"pool"},
	)

	poolTimeoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_acquire_timeouts_total",
			Help:      "Acquire calls that gave up waiting",
		},
		[]string{"pool"},
	)

	poolInUse = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_in_use",
			Help:      "Resources currently checked out",
		},
		[]string{"pool"},
	)
)

var poolRegistered bool

// RegisterPoolMetrics registers resource pool metrics. Must be called once from main.
func RegisterPoolMetrics() {
	if poolRegistered {
		return
	}
	prometheus.MustRegister(poolWaitDuration, poolTimeoutsTotal, poolInUse)
	poolRegistered = true
}

// PoolObserver reports pool activity under a fixed pool label.
// It satisfies pool.Observer.
type PoolObserver struct {
	name string
}

// NewPoolObserver returns an observer labelled with name.
func NewPoolObserver(name string) PoolObserver {
	return PoolObserver{name: name}
}

// Acquired records a successful acquire and its wait time.
func (o PoolObserver) Acquired(wait time.Duration) {
	poolWaitDuration.WithLabelValues(o.name).Observe(wait.Seconds())
	poolInUse.WithLabelValues(o.name).Inc()
}

// Released records a resource returned to the pool.
func (o PoolObserver) Released() {
	poolInUse.WithLabelValues(o.name).Dec()
}

// TimedOut records an acquire that hit its deadline.
func (o PoolObserver) TimedOut() {
	poolTimeoutsTotal.WithLabelValues(o.name).Inc()
}
