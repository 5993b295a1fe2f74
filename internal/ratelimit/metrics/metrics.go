package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions   *prometheus.CounterVec
	CircuitOpen prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "desci_ratelimit_decisions_total",
			Help: "Rate limit checks on write requests by outcome",
		}, []string{"outcome"}),
		CircuitOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "desci_ratelimit_circuit_open",
			Help: "1 while the shared bucket store is bypassed for the in-memory fallback",
		}),
	}
}

func (m *Metrics) IncDecision(outcome string) {
	if m != nil {
		m.Decisions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitOpen.Set(1)
		return
	}
	m.CircuitOpen.Set(0)
}
