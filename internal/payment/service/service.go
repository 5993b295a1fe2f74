// Package service implements the payment distributor: batch payouts from a
// treasury to contributors, settled on an external token ledger.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"desci/internal/payment/metrics"
	"desci/internal/payment/ports"
	"desci/pkg/domain"
	dErrors "desci/pkg/domain-errors"
	"desci/pkg/platform/events"
	"desci/pkg/platform/invocation"
)

const contractName = "payment"

type Runner interface {
	Invoke(ctx context.Context, contract, operation string, fn invocation.Func) error
}

// Distribution is one pay_contributors call. Contributors and Amounts are
// parallel lists.
type Distribution struct {
	Contributors []domain.AccountID
	Amounts      []domain.Amount
	Token        domain.AccountID
	Treasury     domain.AccountID
	ReportID     domain.Tag
}

type Service struct {
	runner  Runner
	ledger  ports.TokenLedger
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(runner Runner, ledger ports.TokenLedger, opts ...Option) *Service {
	s := &Service{
		runner: runner,
		ledger: ledger,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PayContributors transfers Amounts[i] from the treasury to Contributors[i]
// in list order and emits PAYMENT_MADE for each transfer. Entries with a
// non-positive amount are skipped. It returns how many transfers were made.
// The first failed transfer aborts the whole call and nothing it emitted
// survives.
func (s *Service) PayContributors(ctx context.Context, d Distribution) (int, error) {
	if len(d.Contributors) != len(d.Amounts) {
		s.metrics.IncDistribution(string(dErrors.CodeLengthMismatch))
		return 0, dErrors.New(dErrors.CodeLengthMismatch,
			fmt.Sprintf("%d contributors but %d amounts", len(d.Contributors), len(d.Amounts)))
	}

	_, joined := invocation.FromContext(ctx)
	paid := 0
	err := s.runner.Invoke(ctx, contractName, "pay_contributors", func(ctx context.Context, inv *invocation.Invocation) error {
		paid = 0
		for i, contributor := range d.Contributors {
			amount := d.Amounts[i]
			if amount.Sign() <= 0 {
				s.logger.DebugContext(ctx, "skipping non-positive payment",
					"report_id", d.ReportID,
					"contributor", contributor,
					"amount", amount.String(),
				)
				continue
			}

			start := time.Now()
			if err := s.ledger.Transfer(ctx, d.Token, d.Treasury, contributor, amount); err != nil {
				s.metrics.ObserveLedgerCall("transfer", "error", time.Since(start))
				return dErrors.Wrap(err, dErrors.CodeExternalTransferFailed,
					fmt.Sprintf("transfer to %s failed", contributor))
			}
			s.metrics.ObserveLedgerCall("transfer", "ok", time.Since(start))

			if err := inv.Emit(ctx, []string{events.TopicPaymentMade, string(d.ReportID)}, events.PaymentMade{
				Contributor: contributor,
				Amount:      amount,
			}); err != nil {
				return err
			}
			paid++
		}
		return nil
	})
	if err != nil {
		s.metrics.IncDistribution(string(dErrors.CodeOf(err)))
		s.logger.ErrorContext(ctx, "contributor payout failed",
			"report_id", d.ReportID,
			"contributors", len(d.Contributors),
			"error", err,
		)
		return 0, err
	}

	// A joined call has not committed yet; the enclosing operation reports
	// the outcome once it does.
	if joined {
		s.logger.DebugContext(ctx, "contributors paid, awaiting enclosing commit",
			"report_id", d.ReportID,
			"paid", paid,
		)
		return paid, nil
	}

	for range paid {
		s.metrics.IncPaymentMade()
	}
	for range len(d.Contributors) - paid {
		s.metrics.IncPaymentSkipped()
	}
	s.metrics.IncDistribution("ok")
	s.logger.InfoContext(ctx, "contributors paid",
		"report_id", d.ReportID,
		"paid", paid,
		"skipped", len(d.Contributors)-paid,
	)
	return paid, nil
}

// GetBalance returns the address's balance of token on the token ledger.
func (s *Service) GetBalance(ctx context.Context, token, address domain.AccountID) (domain.Amount, error) {
	var balance domain.Amount
	err := s.runner.Invoke(ctx, contractName, "get_balance", func(ctx context.Context, _ *invocation.Invocation) error {
		start := time.Now()
		b, err := s.ledger.Balance(ctx, token, address)
		if err != nil {
			s.metrics.ObserveLedgerCall("balance", "error", time.Since(start))
			if _, ok := dErrors.As(err); ok {
				return err
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "token ledger balance lookup failed")
		}
		s.metrics.ObserveLedgerCall("balance", "ok", time.Since(start))
		balance = b
		return nil
	})
	if err != nil {
		return domain.Amount{}, err
	}
	return balance, nil
}
