package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"desci/internal/biocredit/metrics"
	"desci/pkg/domain"
	dErrors "desci/pkg/domain-errors"
	"desci/pkg/platform/invocation"
	"desci/pkg/platform/kv/memory"
)

type ServiceSuite struct {
	suite.Suite
	store   *memory.Store
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = memory.New()
	s.service = New(invocation.NewRunner(s.store))
	s.ctx = context.Background()
}

func (s *ServiceSuite) balance(account domain.AccountID) domain.Amount {
	b, err := s.service.Balance(s.ctx, account)
	s.Require().NoError(err)
	return b
}

func (s *ServiceSuite) mint(account domain.AccountID, amount int64) domain.Amount {
	b, err := s.service.Mint(s.ctx, account, domain.NewAmount(amount))
	s.Require().NoError(err)
	return b
}

func (s *ServiceSuite) TestUnknownAccountHasZeroBalance() {
	s.True(s.balance("never-minted").IsZero())
	s.Zero(s.store.Len(), "reading a balance writes nothing")
}

func (s *ServiceSuite) TestMintAccumulates() {
	total := int64(0)
	for _, amount := range []int64{1, 0, 7, 1_000_000} {
		total += amount
		got := s.mint("X", amount)
		s.Equal(domain.NewAmount(total), got)
		s.Equal(domain.NewAmount(total), s.balance("X"))
	}
}

func (s *ServiceSuite) TestConcreteScenario() {
	s.Equal(domain.NewAmount(10), s.mint("X", 10))
	s.Equal(domain.NewAmount(10), s.balance("X"))
	s.Equal(domain.NewAmount(15), s.mint("X", 5))

	remaining, err := s.service.Transfer(s.ctx, "X", "Y", domain.NewAmount(5))
	s.Require().NoError(err)
	s.Equal(domain.NewAmount(10), remaining)
	s.Equal(domain.NewAmount(10), s.balance("X"))
	s.Equal(domain.NewAmount(5), s.balance("Y"))
}

func (s *ServiceSuite) TestTransferInsufficientBalanceLeavesStateUnchanged() {
	s.mint("X", 3)
	s.mint("Y", 1)

	_, err := s.service.Transfer(s.ctx, "X", "Y", domain.NewAmount(4))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientBalance))
	s.Equal(domain.NewAmount(3), s.balance("X"))
	s.Equal(domain.NewAmount(1), s.balance("Y"))
}

func (s *ServiceSuite) TestTransferFromUnknownAccount() {
	_, err := s.service.Transfer(s.ctx, "ghost", "Y", domain.NewAmount(1))
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientBalance))
	s.Zero(s.store.Len())
}

func (s *ServiceSuite) TestTransferExactBalance() {
	s.mint("X", 5)
	remaining, err := s.service.Transfer(s.ctx, "X", "Y", domain.NewAmount(5))
	s.Require().NoError(err)
	s.True(remaining.IsZero())
	s.Equal(domain.NewAmount(5), s.balance("Y"))
}

func (s *ServiceSuite) TestSelfTransferAppliesDebitThenCredit() {
	s.mint("X", 10)

	remaining, err := s.service.Transfer(s.ctx, "X", "X", domain.NewAmount(4))
	s.Require().NoError(err)
	s.Equal(domain.NewAmount(6), remaining, "the post-debit balance is returned")
	s.Equal(domain.NewAmount(10), s.balance("X"), "net effect is zero")
}

func (s *ServiceSuite) TestSelfTransferStillChecksBalance() {
	s.mint("X", 1)
	_, err := s.service.Transfer(s.ctx, "X", "X", domain.NewAmount(2))
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientBalance))
}

func (s *ServiceSuite) TestZeroAmountsStillWrite() {
	s.Equal(domain.NewAmount(0), s.mint("X", 0))
	s.Equal(1, s.store.Len(), "mint of zero writes the balance")

	_, err := s.service.Transfer(s.ctx, "X", "Y", domain.NewAmount(0))
	s.Require().NoError(err)
	s.Equal(2, s.store.Len(), "transfer of zero writes both balances")
}

func (s *ServiceSuite) TestNegativeAmountsRejected() {
	_, err := s.service.Mint(s.ctx, "X", domain.NewAmount(-1))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	s.mint("X", 5)
	_, err = s.service.Transfer(s.ctx, "X", "Y", domain.NewAmount(-1))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal(domain.NewAmount(5), s.balance("X"))
}

func (s *ServiceSuite) TestMintOverflowAborts() {
	_, err := s.service.Mint(s.ctx, "X", domain.MaxAmount)
	s.Require().NoError(err)

	_, err = s.service.Mint(s.ctx, "X", domain.NewAmount(1))
	s.True(dErrors.HasCode(err, dErrors.CodeOverflow))
	s.Equal(domain.MaxAmount, s.balance("X"))
}

func (s *ServiceSuite) TestTransferReceiverOverflowRollsBackDebit() {
	_, err := s.service.Mint(s.ctx, "Y", domain.MaxAmount)
	s.Require().NoError(err)
	s.mint("X", 5)

	_, err = s.service.Transfer(s.ctx, "X", "Y", domain.NewAmount(5))
	s.True(dErrors.HasCode(err, dErrors.CodeOverflow))
	s.Equal(domain.NewAmount(5), s.balance("X"), "debit is rolled back")
}

func (s *ServiceSuite) TestTokensAreIsolated() {
	other := New(invocation.NewRunner(s.store), WithToken(domain.MustTag("OTHER")))
	s.mint("X", 10)

	b, err := other.Balance(s.ctx, "X")
	s.Require().NoError(err)
	s.True(b.IsZero())
}

func unregisteredMetrics() *metrics.Metrics {
	return &metrics.Metrics{
		Operations:          prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ops"}, []string{"operation", "outcome"}),
		InsufficientBalance: prometheus.NewCounter(prometheus.CounterOpts{Name: "insufficient"}),
		Minted:              prometheus.NewCounter(prometheus.CounterOpts{Name: "minted"}),
	}
}

func (s *ServiceSuite) TestTransferInsideEnclosingInvocationWaitsForCommit() {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := unregisteredMetrics()
	runner := invocation.NewRunner(s.store)
	svc := New(runner, WithLogger(logger), WithMetrics(m))

	_, err := svc.Mint(s.ctx, "alice", domain.NewAmount(10))
	s.Require().NoError(err)
	logs.Reset()

	rolledBack := errors.New("later step failed")
	err = runner.Invoke(s.ctx, "report", "process_payment", func(ctx context.Context, _ *invocation.Invocation) error {
		_, err := svc.Transfer(ctx, "alice", "treasury", domain.NewAmount(4))
		s.Require().NoError(err)
		return rolledBack
	})
	s.Require().ErrorIs(err, rolledBack)

	s.Zero(testutil.ToFloat64(m.Operations.WithLabelValues("transfer", "ok")))
	s.NotContains(logs.String(), `"level":"INFO"`)
	s.Contains(logs.String(), `"level":"DEBUG"`)
	s.Contains(logs.String(), "awaiting enclosing commit")

	b, err := svc.Balance(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(domain.NewAmount(10), b)

	_, err = svc.Transfer(s.ctx, "alice", "treasury", domain.NewAmount(4))
	s.Require().NoError(err)
	s.Equal(float64(1), testutil.ToFloat64(m.Operations.WithLabelValues("transfer", "ok")))
	s.Contains(logs.String(), `"msg":"credits transferred"`)
}
