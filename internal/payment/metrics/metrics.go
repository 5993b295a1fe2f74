package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for contributor payouts.
type Metrics struct {
	Distributions      *prometheus.CounterVec
	PaymentsMade       prometheus.Counter
	PaymentsSkipped    prometheus.Counter
	LedgerCallDuration *prometheus.HistogramVec
}

func New() *Metrics {
	return &Metrics{
		Distributions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "desci_payment_distributions_total",
			Help: "pay_contributors calls by outcome",
		}, []string{"outcome"}),
		PaymentsMade: promauto.NewCounter(prometheus.CounterOpts{
			Name: "desci_payment_payments_made_total",
			Help: "Individual contributor payments transferred",
		}),
		PaymentsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "desci_payment_payments_skipped_total",
			Help: "Entries skipped because the amount was not positive",
		}),
		LedgerCallDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "desci_payment_token_ledger_duration_seconds",
			Help:    "Token ledger call latency",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"call", "outcome"}),
	}
}

func (m *Metrics) IncDistribution(outcome string) {
	if m != nil {
		m.Distributions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncPaymentMade() {
	if m != nil {
		m.PaymentsMade.Inc()
	}
}

func (m *Metrics) IncPaymentSkipped() {
	if m != nil {
		m.PaymentsSkipped.Inc()
	}
}

func (m *Metrics) ObserveLedgerCall(call, outcome string, d time.Duration) {
	if m != nil {
		m.LedgerCallDuration.WithLabelValues(call, outcome).Observe(d.Seconds())
	}
}
