package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Inference and model metrics.
var (
	InferenceBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_batch_size",
			Help:      "Number of texts per classifier forward pass",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
		},
	)

	InferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Forward pass duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"classifier"},
	)

	InferenceErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_errors_total",
			Help:      "Failed inference calls by stage",
		},
		[]string{"stage"}, // tokenize / forward / output
	)

	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Predicted labels",
		},
		[]string{"label"},
	)

	ModelDegraded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_degraded",
			Help:      "1 when the stub classifier serves in place of a configured model",
		},
	)
)

var inferenceRegistered bool

// RegisterInferenceMetrics registers inference and model metrics. Must be called once from main.
func RegisterInferenceMetrics() {
	if inferenceRegistered {
		return
	}
	prometheus.MustRegister(InferenceBatchSize, InferenceDuration, InferenceErrorsTotal, PredictionsTotal, ModelDegraded)
	inferenceRegistered = true
}

// ObserveForward records one classifier call.
func ObserveForward(classifier string, batch int, d time.Duration) {
	InferenceBatchSize.Observe(float64(batch))
	InferenceDuration.WithLabelValues(classifier).Observe(d.Seconds())
}

// SetDegraded flips the model_degraded gauge.
func SetDegraded(degraded bool) {
	if degraded {
		ModelDegraded.Set(1)
		return
	}
	ModelDegraded.Set(0)
}
