package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Registered      prometheus.Counter
	Duplicates      prometheus.Counter
	Lookups         *prometheus.CounterVec
	IndexDivergence prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Registered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "desci_registry_studies_registered_total",
			Help: "Studies registered",
		}),
		Duplicates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "desci_registry_duplicate_registrations_total",
			Help: "Registrations rejected because the study hash already exists",
		}),
		Lookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "desci_registry_lookups_total",
			Help: "Registry read operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		IndexDivergence: promauto.NewCounter(prometheus.CounterOpts{
			Name: "desci_registry_index_divergence_total",
			Help: "Owner index entries with no matching study record",
		}),
	}
}

func (m *Metrics) IncRegistered() {
	if m != nil {
		m.Registered.Inc()
	}
}

func (m *Metrics) IncDuplicate() {
	if m != nil {
		m.Duplicates.Inc()
	}
}

func (m *Metrics) IncLookup(operation, outcome string) {
	if m != nil {
		m.Lookups.WithLabelValues(operation, outcome).Inc()
	}
}

func (m *Metrics) IncIndexDivergence() {
	if m != nil {
		m.IndexDivergence.Inc()
	}
}
