package service

import (
	"context"
	"log/slog"
	"strconv"

	"desci/internal/biocredit/metrics"
	"desci/internal/biocredit/store"
	"desci/pkg/domain"
	dErrors "desci/pkg/domain-errors"
	"desci/pkg/platform/invocation"
)

const contractName = "biocredit"

// Runner executes an operation as one atomic invocation.
type Runner interface {
	Invoke(ctx context.Context, contract, operation string, fn invocation.Func) error
}

// Service maintains per-account BioCredit balances.
type Service struct {
	runner  Runner
	token   domain.Tag
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(s *Service)

// WithToken sets the token tag balances are keyed under.
func WithToken(token domain.Tag) Option {
	return func(s *Service) {
		s.token = token
	}
}

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

// New constructs a Service.
func New(runner Runner, opts ...Option) *Service {
	s := &Service{
		runner: runner,
		token:  store.DefaultToken,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token returns the configured token tag.
func (s *Service) Token() domain.Tag { return s.token }

// Mint credits amount to the account and returns its new balance.
// Negative amounts are rejected; a result beyond the 128-bit range fails
// with CodeOverflow.
func (s *Service) Mint(ctx context.Context, to domain.AccountID, amount domain.Amount) (domain.Amount, error) {
	if to.IsZero() {
		return domain.Amount{}, dErrors.New(dErrors.CodeValidation, "account is required")
	}
	if amount.Sign() < 0 {
		return domain.Amount{}, dErrors.New(dErrors.CodeValidation, "amount must not be negative")
	}

	var balance domain.Amount
	err := s.runner.Invoke(ctx, contractName, "mint", func(ctx context.Context, inv *invocation.Invocation) error {
		balances := store.NewBalanceStore(inv.Tx(), s.token)
		current, err := balances.Get(ctx, to)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read balance")
		}
		next, err := current.Add(amount)
		if err != nil {
			return err
		}
		if err := balances.Put(ctx, to, next); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write balance")
		}
		balance = next
		return nil
	})
	if err != nil {
		s.metrics.IncOperation("mint", string(dErrors.CodeOf(err)))
		return domain.Amount{}, err
	}

	s.metrics.IncOperation("mint", "ok")
	if f, err := strconv.ParseFloat(amount.String(), 64); err == nil {
		s.metrics.AddMinted(f)
	}
	s.logger.InfoContext(ctx, "credits minted",
		"account", to,
		"amount", amount.String(),
		"balance", balance.String(),
	)
	return balance, nil
}

// Balance returns the account's balance, zero if it was never credited.
func (s *Service) Balance(ctx context.Context, address domain.AccountID) (domain.Amount, error) {
	var balance domain.Amount
	err := s.runner.Invoke(ctx, contractName, "balance", func(ctx context.Context, inv *invocation.Invocation) error {
		b, err := store.NewBalanceStore(inv.Tx(), s.token).Get(ctx, address)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read balance")
		}
		balance = b
		return nil
	})
	if err != nil {
		return domain.Amount{}, err
	}
	return balance, nil
}

// Transfer moves amount from one account to another and returns the
// sender's balance after the debit.
//
// The debit is written before the receiver's balance is read, so a transfer
// to oneself applies both writes in sequence and leaves the balance as it was.
// The returned value is the post-debit balance in that case too.
func (s *Service) Transfer(ctx context.Context, from, to domain.AccountID, amount domain.Amount) (domain.Amount, error) {
	if from.IsZero() || to.IsZero() {
		return domain.Amount{}, dErrors.New(dErrors.CodeValidation, "from and to are required")
	}
	if amount.Sign() < 0 {
		return domain.Amount{}, dErrors.New(dErrors.CodeValidation, "amount must not be negative")
	}

	_, joined := invocation.FromContext(ctx)
	var senderBalance domain.Amount
	err := s.runner.Invoke(ctx, contractName, "transfer", func(ctx context.Context, inv *invocation.Invocation) error {
		balances := store.NewBalanceStore(inv.Tx(), s.token)

		fromBalance, err := balances.Get(ctx, from)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read sender balance")
		}
		if fromBalance.LessThan(amount) {
			return dErrors.New(dErrors.CodeInsufficientBalance, "insufficient balance")
		}
		newFrom, err := fromBalance.Sub(amount)
		if err != nil {
			return err
		}
		if err := balances.Put(ctx, from, newFrom); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write sender balance")
		}

		toBalance, err := balances.Get(ctx, to)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read receiver balance")
		}
		newTo, err := toBalance.Add(amount)
		if err != nil {
			return err
		}
		if err := balances.Put(ctx, to, newTo); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write receiver balance")
		}

		senderBalance = newFrom
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInsufficientBalance) {
			s.metrics.IncInsufficientBalance()
		}
		s.metrics.IncOperation("transfer", string(dErrors.CodeOf(err)))
		return domain.Amount{}, err
	}

	// Inside an enclosing invocation the debit can still roll back.
	if joined {
		s.logger.DebugContext(ctx, "credits transferred, awaiting enclosing commit",
			"from", from,
			"to", to,
			"amount", amount.String(),
		)
		return senderBalance, nil
	}

	s.metrics.IncOperation("transfer", "ok")
	s.logger.InfoContext(ctx, "credits transferred",
		"from", from,
		"to", to,
		"amount", amount.String(),
	)
	return senderBalance, nil
}
