package generation

import "github.com/prometheus/client_golang/prometheus"

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "samplegen",
			Subsystem: "worker",
			Name:      "requests_total",
			Help:      "Requests processed by the worker, by outcome",
		},
		[]string{"outcome"},
	)

	generationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "samplegen",
			Subsystem: "worker",
			Name:      "generation_duration_seconds",
			Help:      "Time from inference start to artifact written",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "samplegen",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Requests waiting in the admission queue",
		},
	)

	modelLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "samplegen",
			Subsystem: "worker",
			Name:      "model_loads_total",
			Help:      "Model load attempts, by result",
		},
		[]string{"result"},
	)

	cancellationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "samplegen",
			Subsystem: "worker",
			Name:      "cancellations_total",
			Help:      "Cancellation signals raised",
		},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, generationDuration, queueDepth, modelLoadsTotal, cancellationsTotal)
}

const (
	outcomeGenerated    = "generated"
	outcomeCancelled    = "cancelled"
	outcomeInferFailed  = "inference_failed"
	outcomeWriteFailed  = "write_failed"
	outcomeNotifyFailed = "notify_failed"
	outcomePanic        = "panic"
)
