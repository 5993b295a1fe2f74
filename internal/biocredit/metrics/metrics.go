package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the BioCredit ledger.
type Metrics struct {
	Operations          *prometheus.CounterVec
	InsufficientBalance prometheus.Counter
	Minted              prometheus.Counter
}

// New creates a new Metrics instance with ledger metrics registered.
func New() *Metrics {
	return &Metrics{
		Operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "desci_biocredit_operations_total",
			Help: "BioCredit ledger operations by operation and outcome",
		}, []string{"operation", "outcome"}),

		InsufficientBalance: promauto.NewCounter(prometheus.CounterOpts{
			Name: "desci_biocredit_insufficient_balance_total",
			Help: "Transfers rejected because the sender balance was too low",
		}),

		// Float approximation; balances themselves are exact 128-bit integers.
		Minted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "desci_biocredit_minted_units_total",
			Help: "Credit units minted",
		}),
	}
}

func (m *Metrics) IncOperation(operation, outcome string) {
	if m != nil {
		m.Operations.WithLabelValues(operation, outcome).Inc()
	}
}

func (m *Metrics) IncInsufficientBalance() {
	if m != nil {
		m.InsufficientBalance.Inc()
	}
}

func (m *Metrics) AddMinted(units float64) {
	if m != nil && units > 0 {
		m.Minted.Add(units)
	}
}
