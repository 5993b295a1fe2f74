package invocation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "desci/pkg/domain-errors"
	"desci/pkg/platform/events"
	evmemory "desci/pkg/platform/events/memory"
	"desci/pkg/platform/kv"
	kvmemory "desci/pkg/platform/kv/memory"
	"desci/pkg/platform/sentinel"
	"desci/pkg/requestcontext"
)

type RunnerSuite struct {
	suite.Suite
	store  *kvmemory.Store
	sink   *evmemory.Sink
	runner *Runner
	ctx    context.Context
}

func TestRunnerSuite(t *testing.T) {
	suite.Run(t, new(RunnerSuite))
}

func (s *RunnerSuite) SetupTest() {
	s.store = kvmemory.New()
	s.sink = evmemory.NewSink()
	s.runner = NewRunner(s.store, WithSink(s.sink))
	s.ctx = context.Background()
}

func (s *RunnerSuite) TestCommitDeliversEventsInEmissionOrder() {
	err := s.runner.Invoke(s.ctx, "payment", "pay_contributors", func(ctx context.Context, inv *Invocation) error {
		s.Require().NoError(inv.Tx().Set(ctx, "k", []byte(`1`)))
		s.Require().NoError(inv.Emit(ctx, []string{events.TopicPaymentMade, "r1"}, map[string]string{"contributor": "C1"}))
		s.Require().NoError(inv.Emit(ctx, []string{events.TopicPaymentMade, "r1"}, map[string]string{"contributor": "C2"}))
		s.Empty(s.sink.Events(), "nothing is delivered before commit")
		return nil
	})
	s.Require().NoError(err)

	got := s.sink.Events()
	s.Require().Len(got, 2)
	s.Equal(0, got[0].Sequence)
	s.Equal(1, got[1].Sequence)
	s.Equal(got[0].Invocation, got[1].Invocation)
	s.Equal("payment", got[0].Contract)
	s.Equal("pay_contributors", got[0].Operation)
	s.JSONEq(`{"contributor":"C1"}`, string(got[0].Data))
	s.Equal(1, s.store.Len())
}

func (s *RunnerSuite) TestFailureDiscardsWritesAndEvents() {
	boom := dErrors.New(dErrors.CodeExternalTransferFailed, "token transfer failed")
	err := s.runner.Invoke(s.ctx, "payment", "pay_contributors", func(ctx context.Context, inv *Invocation) error {
		s.Require().NoError(inv.Tx().Set(ctx, "k", []byte(`1`)))
		s.Require().NoError(inv.Emit(ctx, []string{events.TopicPaymentMade, "r1"}, nil))
		return boom
	})

	s.ErrorIs(err, boom)
	s.Empty(s.sink.Events())
	s.Zero(s.store.Len())
}

func (s *RunnerSuite) TestNestedInvocationJoinsOuter() {
	err := s.runner.Invoke(s.ctx, "report", "process_payment", func(ctx context.Context, outer *Invocation) error {
		return s.runner.Invoke(ctx, "registry", "register_study", func(ctx context.Context, inner *Invocation) error {
			s.Equal(outer.ID(), inner.ID())
			s.Same(outer.Tx(), inner.Tx())
			return inner.Emit(ctx, []string{events.TopicStudyRegistered, "aa"}, nil)
		})
	})
	s.Require().NoError(err)

	got := s.sink.Events()
	s.Require().Len(got, 1)
	s.Equal("registry", got[0].Contract, "events keep the emitting contract")
}

func (s *RunnerSuite) TestNestedFailureRollsBackOuter() {
	err := s.runner.Invoke(s.ctx, "report", "process_payment", func(ctx context.Context, outer *Invocation) error {
		s.Require().NoError(outer.Tx().Set(ctx, "charged", []byte(`true`)))
		return s.runner.Invoke(ctx, "payment", "pay_contributors", func(ctx context.Context, inner *Invocation) error {
			return dErrors.New(dErrors.CodeLengthMismatch, "contributors and amounts must have the same length")
		})
	})
	s.True(dErrors.HasCode(err, dErrors.CodeLengthMismatch))
	s.Zero(s.store.Len())
}

func (s *RunnerSuite) TestEmittedAtUsesRequestTime() {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(s.ctx, fixed)
	err := s.runner.Invoke(ctx, "registry", "register_study", func(ctx context.Context, inv *Invocation) error {
		return inv.Emit(ctx, []string{events.TopicStudyRegistered}, nil)
	})
	s.Require().NoError(err)
	s.Equal(fixed, s.sink.Events()[0].EmittedAt)
}

func (s *RunnerSuite) TestEmitRequiresTopic() {
	err := s.runner.Invoke(s.ctx, "registry", "register_study", func(ctx context.Context, inv *Invocation) error {
		return inv.Emit(ctx, nil, nil)
	})
	s.Error(err)
}

func (s *RunnerSuite) TestSinkFailureDoesNotFailInvocation() {
	runner := NewRunner(s.store, WithSink(events.SinkFunc(func(context.Context, []events.Event) error {
		return errors.New("broker down")
	})))
	err := runner.Invoke(s.ctx, "payment", "pay_contributors", func(ctx context.Context, inv *Invocation) error {
		s.Require().NoError(inv.Tx().Set(ctx, "k", []byte(`1`)))
		return inv.Emit(ctx, []string{events.TopicPaymentMade, "r1"}, nil)
	})
	s.NoError(err)
	s.Equal(1, s.store.Len(), "state stays committed")
}

func (s *RunnerSuite) TestRecorderRunsInsideTransaction() {
	var recorded []events.Event
	recorder := recorderFunc(func(ctx context.Context, evts []events.Event) error {
		_, inTx := kv.TxFrom(ctx)
		s.True(inTx)
		recorded = append(recorded, evts...)
		return nil
	})
	runner := NewRunner(s.store, WithRecorder(recorder))
	err := runner.Invoke(s.ctx, "registry", "register_study", func(ctx context.Context, inv *Invocation) error {
		return inv.Emit(ctx, []string{events.TopicStudyRegistered, "aa"}, nil)
	})
	s.Require().NoError(err)
	s.Len(recorded, 1)
}

func (s *RunnerSuite) TestRecorderFailureAbortsInvocation() {
	recorder := recorderFunc(func(context.Context, []events.Event) error {
		return errors.New("outbox unavailable")
	})
	runner := NewRunner(s.store, WithRecorder(recorder), WithSink(s.sink))
	err := runner.Invoke(s.ctx, "registry", "register_study", func(ctx context.Context, inv *Invocation) error {
		s.Require().NoError(inv.Tx().Set(ctx, "study/aa", []byte(`{}`)))
		return inv.Emit(ctx, []string{events.TopicStudyRegistered, "aa"}, nil)
	})
	s.Error(err)
	s.Zero(s.store.Len())
	s.Empty(s.sink.Events())
}

func (s *RunnerSuite) TestConflictsAreRetried() {
	store := &conflictingStore{Store: s.store, failures: 2}
	runner := NewRunner(store, WithSink(s.sink), WithMaxConflictRetries(3))

	calls := 0
	err := runner.Invoke(s.ctx, "biocredit", "mint", func(ctx context.Context, inv *Invocation) error {
		calls++
		return inv.Emit(ctx, []string{"MINT"}, calls)
	})
	s.Require().NoError(err)
	s.Equal(3, calls)
	s.Require().Len(s.sink.Events(), 1, "events of conflicted attempts are discarded")
	s.JSONEq(`3`, string(s.sink.Events()[0].Data))
}

func (s *RunnerSuite) TestConflictRetriesExhausted() {
	store := &conflictingStore{Store: s.store, failures: 10}
	runner := NewRunner(store, WithMaxConflictRetries(1))

	err := runner.Invoke(s.ctx, "biocredit", "mint", func(context.Context, *Invocation) error { return nil })
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.ErrorIs(err, sentinel.ErrConflict)
}

type recorderFunc func(ctx context.Context, evts []events.Event) error

func (f recorderFunc) Record(ctx context.Context, evts []events.Event) error { return f(ctx, evts) }

// conflictingStore runs the transaction body and then reports a conflict for
// the first n attempts.
type conflictingStore struct {
	*kvmemory.Store
	failures int
}

func (c *conflictingStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx kv.Tx) error) error {
	if c.failures > 0 {
		c.failures--
		overlay := kv.NewOverlay(emptyReader{})
		if err := fn(kv.WithTx(ctx, overlay), overlay); err != nil {
			return err
		}
		return fmt.Errorf("%w: simulated", sentinel.ErrConflict)
	}
	return c.Store.RunInTx(ctx, fn)
}

type emptyReader struct{}

func (emptyReader) Get(context.Context, string) ([]byte, error) { return nil, sentinel.ErrNotFound }
func (emptyReader) Has(context.Context, string) (bool, error)   { return false, nil }
