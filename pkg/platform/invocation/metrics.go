package invocation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for invocations.
type Metrics struct {
	Invocations     *prometheus.CounterVec
	Duration        *prometheus.HistogramVec
	ConflictRetries *prometheus.CounterVec
	EventsEmitted   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with invocation metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Invocations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "desci_invocations_total",
			Help: "Total invocations by contract, operation and outcome",
		}, []string{"contract", "operation", "outcome"}), // outcome: "ok" or an error code

		Duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "desci_invocation_duration_seconds",
			Help:    "Duration of an invocation including commit",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"contract", "operation"}),

		ConflictRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "desci_invocation_conflict_retries_total",
			Help: "Invocations re-run after a concurrent modification",
		}, []string{"contract", "operation"}),

		EventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "desci_events_emitted_total",
			Help: "Contract events emitted by committed invocations",
		}, []string{"contract"}),
	}
}

// ObserveInvocation records one finished invocation.
func (m *Metrics) ObserveInvocation(contract, operation, outcome string, d time.Duration) {
	if m != nil {
		m.Invocations.WithLabelValues(contract, operation, outcome).Inc()
		m.Duration.WithLabelValues(contract, operation).Observe(d.Seconds())
	}
}

func (m *Metrics) IncConflictRetry(contract, operation string) {
	if m != nil {
		m.ConflictRetries.WithLabelValues(contract, operation).Inc()
	}
}

func (m *Metrics) AddEventsEmitted(contract string, n int) {
	if m != nil {
		m.EventsEmitted.WithLabelValues(contract).Add(float64(n))
	}
}
