// Package invocation runs ledger operations as atomic invocations.
//
// A Runner plays the role of the execution environment: it serializes
// invocations, opens one kv transaction per invocation, collects the events
// the operation emits and delivers them only after the transaction commits.
// If the operation fails, nothing it wrote and nothing it emitted survives.
package invocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	dErrors "desci/pkg/domain-errors"
	"desci/pkg/platform/events"
	"desci/pkg/platform/kv"
	"desci/pkg/platform/sentinel"
	"desci/pkg/requestcontext"
)

const (
	tracerName                = "desci/invocation"
	defaultMaxConflictRetries = 3
)

// Func is the body of an invocation.
type Func func(ctx context.Context, inv *Invocation) error

// Invocation is the handle an operation uses to reach its transaction and
// emit events. It is only valid inside the Func it was passed to.
type Invocation struct {
	contract  string
	operation string
	tx        kv.Tx
	journal   *journal
}

type journal struct {
	id     uuid.UUID
	root   string
	events []events.Event
}

type ctxKey struct{}

// FromContext returns the invocation active in ctx, if any.
func FromContext(ctx context.Context) (*Invocation, bool) {
	inv, ok := ctx.Value(ctxKey{}).(*Invocation)
	return inv, ok
}

// ID identifies the root invocation. Nested operations share it.
func (inv *Invocation) ID() uuid.UUID { return inv.journal.id }

func (inv *Invocation) Contract() string { return inv.contract }

func (inv *Invocation) Operation() string { return inv.operation }

// Tx returns the invocation's storage transaction.
func (inv *Invocation) Tx() kv.Tx { return inv.tx }

// Emit appends an event with the given topic tuple. payload is JSON encoded.
func (inv *Invocation) Emit(ctx context.Context, topics []string, payload any) error {
	if len(topics) == 0 {
		return errors.New("event requires at least one topic")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topics[0], err)
	}
	inv.journal.events = append(inv.journal.events, events.Event{
		ID:         uuid.New(),
		Contract:   inv.contract,
		Topics:     append([]string(nil), topics...),
		Data:       data,
		Invocation: inv.journal.id,
		Operation:  inv.operation,
		Sequence:   len(inv.journal.events),
		EmittedAt:  requestcontext.Now(ctx).UTC(),
	})
	return nil
}

// Events returns a copy of the events emitted so far.
func (inv *Invocation) Events() []events.Event {
	return append([]events.Event(nil), inv.journal.events...)
}

// Runner executes invocations against a kv.Store.
type Runner struct {
	store    kv.Store
	recorder events.Recorder
	sink     events.Sink
	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
	retries  int

	mu sync.Mutex
}

// Option configures a Runner.
type Option func(*Runner)

// WithRecorder persists events inside the storage transaction (outbox).
func WithRecorder(r events.Recorder) Option {
	return func(rn *Runner) {
		rn.recorder = r
	}
}

// WithSink delivers events after commit.
func WithSink(s events.Sink) Option {
	return func(rn *Runner) {
		rn.sink = s
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(rn *Runner) {
		rn.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(rn *Runner) {
		rn.metrics = m
	}
}

// WithTracerProvider overrides the global OpenTelemetry provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(rn *Runner) {
		rn.tracer = tp.Tracer(tracerName)
	}
}

// WithMaxConflictRetries bounds how often an invocation is re-run after the
// backend reports a concurrent modification. Zero disables retries.
func WithMaxConflictRetries(n int) Option {
	return func(rn *Runner) {
		if n >= 0 {
			rn.retries = n
		}
	}
}

// NewRunner creates a runner over store.
func NewRunner(store kv.Store, opts ...Option) *Runner {
	r := &Runner{
		store:   store,
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
		retries: defaultMaxConflictRetries,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Invoke runs fn as one atomic invocation of contract.operation.
//
// When ctx already carries an invocation, fn joins it: its writes and events
// become part of the outer invocation and commit or roll back with it. A
// joined call that fails must fail the outer invocation too.
func (r *Runner) Invoke(ctx context.Context, contract, operation string, fn Func) error {
	if outer, ok := FromContext(ctx); ok {
		child := &Invocation{
			contract:  contract,
			operation: operation,
			tx:        outer.tx,
			journal:   outer.journal,
		}
		return fn(context.WithValue(ctx, ctxKey{}, child), child)
	}

	ctx, span := r.tracer.Start(ctx, contract+"."+operation,
		trace.WithAttributes(
			attribute.String("desci.contract", contract),
			attribute.String("desci.operation", operation),
		),
	)
	defer span.End()
	start := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		inv *Invocation
		err error
	)
	for attempt := 0; ; attempt++ {
		inv = &Invocation{
			contract:  contract,
			operation: operation,
			journal:   &journal{id: uuid.New(), root: contract + "." + operation},
		}
		err = r.store.RunInTx(ctx, func(ctx context.Context, tx kv.Tx) error {
			inv.tx = tx
			if err := fn(context.WithValue(ctx, ctxKey{}, inv), inv); err != nil {
				return err
			}
			if r.recorder != nil && len(inv.journal.events) > 0 {
				if err := r.recorder.Record(ctx, inv.journal.events); err != nil {
					return fmt.Errorf("record events: %w", err)
				}
			}
			return nil
		})
		if err == nil || !errors.Is(err, sentinel.ErrConflict) || attempt >= r.retries {
			break
		}
		r.metrics.IncConflictRetry(contract, operation)
		r.logger.WarnContext(ctx, "invocation conflicted, retrying",
			"contract", contract,
			"operation", operation,
			"attempt", attempt+1,
		)
	}

	span.SetAttributes(attribute.String("desci.invocation_id", inv.journal.id.String()))
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			err = dErrors.Wrap(err, dErrors.CodeConflict, "concurrent modification, retry the call")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		r.metrics.ObserveInvocation(contract, operation, string(dErrors.CodeOf(err)), time.Since(start))
		return err
	}

	span.SetStatus(codes.Ok, "")
	r.metrics.ObserveInvocation(contract, operation, "ok", time.Since(start))
	r.deliver(ctx, inv)
	return nil
}

// deliver hands committed events to the sink. Delivery happens while the
// runner still holds its lock so the sink sees invocations in commit order.
func (r *Runner) deliver(ctx context.Context, inv *Invocation) {
	evts := inv.journal.events
	if len(evts) == 0 {
		return
	}
	r.metrics.AddEventsEmitted(inv.contract, len(evts))
	if r.sink == nil {
		return
	}
	if err := r.sink.Publish(ctx, evts); err != nil {
		r.logger.ErrorContext(ctx, "event delivery failed",
			"invocation_id", inv.journal.id,
			"root", inv.journal.root,
			"events", len(evts),
			"error", err,
		)
	}
}
