package publisher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for event delivery.
type Metrics struct {
	Queued          prometheus.Counter
	Dropped         prometheus.Counter
	Delivered       prometheus.Counter
	Failed          prometheus.Counter
	DeliverDuration prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with delivery metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Queued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "desci_events_queued_total",
			Help: "Total number of contract events queued for async delivery",
		}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "desci_events_dropped_total",
			Help: "Total number of contract events dropped because the buffer was full",
		}),
		Delivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "desci_events_delivered_total",
			Help: "Total number of contract events delivered to sinks",
		}),
		Failed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "desci_events_delivery_failures_total",
			Help: "Total number of contract events whose delivery failed",
		}),
		DeliverDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "desci_events_deliver_duration_seconds",
			Help:    "Duration of a batch delivery to the configured sinks",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncQueued(n int) {
	if m != nil {
		m.Queued.Add(float64(n))
	}
}

func (m *Metrics) IncDropped(n int) {
	if m != nil {
		m.Dropped.Add(float64(n))
	}
}

func (m *Metrics) IncDelivered(n int) {
	if m != nil {
		m.Delivered.Add(float64(n))
	}
}

func (m *Metrics) IncFailed(n int) {
	if m != nil {
		m.Failed.Add(float64(n))
	}
}

func (m *Metrics) ObserveDeliverDuration(d time.Duration) {
	if m != nil {
		m.DeliverDuration.Observe(d.Seconds())
	}
}
