// Package publisher decouples event delivery from the invocation path.
//
// In sync mode Publish forwards straight to the wrapped sink. With
// WithAsyncBuffer the batch is queued and a background goroutine delivers it,
// so a slow broker never holds the ledger's invocation lock.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"desci/pkg/platform/events"
)

// ErrBufferFull is returned when the async queue cannot accept a batch.
var ErrBufferFull = errors.New("event buffer full")

const deliverTimeout = 10 * time.Second

// Publisher wraps a Sink with optional asynchronous delivery.
type Publisher struct {
	sink    events.Sink
	logger  *slog.Logger
	metrics *Metrics

	queue     chan []events.Event
	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables background delivery with a queue of n batches.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.queue = make(chan []events.Event, n)
		}
	}
}

// WithLogger sets a logger for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// NewPublisher wraps sink.
func NewPublisher(sink events.Sink, opts ...Option) *Publisher {
	p := &Publisher{sink: sink}
	for _, opt := range opts {
		opt(p)
	}
	if p.queue != nil {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Publish delivers evts (sync mode) or enqueues them (async mode).
func (p *Publisher) Publish(ctx context.Context, evts []events.Event) error {
	if len(evts) == 0 {
		return nil
	}
	if p.queue == nil {
		return p.deliver(ctx, evts)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errors.New("publisher closed")
	}
	batch := append([]events.Event(nil), evts...)
	select {
	case p.queue <- batch:
		p.metrics.IncQueued(len(batch))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.metrics.IncDropped(len(batch))
		if p.logger != nil {
			p.logger.WarnContext(ctx, "event buffer full, dropping batch", "events", len(batch))
		}
		return ErrBufferFull
	}
}

// Close stops accepting batches and drains everything already queued.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		if p.queue == nil {
			return
		}
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
		p.wg.Wait()
	})
	return nil
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for batch := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		_ = p.deliver(ctx, batch)
		cancel()
	}
}

func (p *Publisher) deliver(ctx context.Context, evts []events.Event) error {
	start := time.Now()
	if err := p.sink.Publish(ctx, evts); err != nil {
		p.metrics.IncFailed(len(evts))
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "event delivery failed",
				"events", len(evts),
				"error", err,
			)
		}
		return err
	}
	p.metrics.IncDelivered(len(evts))
	p.metrics.ObserveDeliverDuration(time.Since(start))
	return nil
}
