package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the ownership ledger.
type Metrics struct {
	Appends       prometheus.Counter
	DeniedAppends prometheus.Counter
}

// New creates and registers the ledger metrics.
func New() *Metrics {
	return &Metrics{
		Appends: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stagepass_ledger_appends_total",
			Help: "Total number of ownership entries appended to the ledger",
		}),
		DeniedAppends: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stagepass_ledger_denied_appends_total",
			Help: "Total number of ledger append attempts rejected by the owner-only check",
		}),
	}
}
