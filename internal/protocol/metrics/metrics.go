package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the protocol controller.
type Metrics struct {
	Purchases        *prometheus.CounterVec
	PurchaseDuration prometheus.Histogram
	Validations      *prometheus.CounterVec
	QueueRequests    *prometheus.CounterVec
}

// New creates and registers the protocol metrics.
func New() *Metrics {
	return &Metrics{
		Purchases: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stagepass_purchases_total",
			Help: "Purchase attempts by outcome",
		}, []string{"outcome"}),
		PurchaseDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stagepass_purchase_duration_seconds",
			Help:    "End-to-end purchase latency including the mint call",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		Validations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stagepass_validations_total",
			Help: "Validation calls by resulting verdict",
		}, []string{"verdict"}),
		QueueRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stagepass_validation_queue_requests_total",
			Help: "Validation queue requests and cancellations",
		}, []string{"op"}),
	}
}
