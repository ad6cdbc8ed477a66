package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	storeOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vector_store_operations_total",
			Help:      "Vector store calls by operation and outcome",
		},
		[]string{"driver", "op", "collection", "status"},
	)

	storeOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vector_store_operation_duration_seconds",
			Help:      "Vector store call duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"driver", "op"},
	)
)

var storeRegistered bool

// RegisterStoreMetrics registers vector store metrics. Must be called once from main.
func RegisterStoreMetrics() {
	if storeRegistered {
		return
	}
	prometheus.MustRegister(storeOpsTotal, storeOpDuration)
	storeRegistered = true
}

// ObserveStoreOp records one vector store call.
func ObserveStoreOp(driver, op, collection string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	storeOpsTotal.WithLabelValues(driver, op, collection, status).Inc()
	storeOpDuration.WithLabelValues(driver, op).Observe(d.Seconds())
}
