// Package local is an in-process token ledger. Its balances live in the same
// transactional store as the rest of the ledger state, so a payout that
// fails halfway rolls back every transfer it already made.
package local

import (
	"context"
	"log/slog"
	"net/url"

	"desci/pkg/domain"
	dErrors "desci/pkg/domain-errors"
	"desci/pkg/platform/kv"
)

type Ledger struct {
	store  kv.Store
	logger *slog.Logger
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// New creates a ledger over store. Calls made while a transaction is active
// in ctx join it.
func New(store kv.Store, opts ...Option) *Ledger {
	l := &Ledger{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Key returns the storage key of an account's token balance. Both parts are
// escaped since addresses may contain '/'.
func Key(token, account domain.AccountID) string {
	return "token/" + url.PathEscape(string(token)) + "/" + url.PathEscape(string(account))
}

func (l *Ledger) Transfer(ctx context.Context, token, from, to domain.AccountID, amount domain.Amount) error {
	if amount.Sign() < 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must not be negative")
	}
	return l.store.RunInTx(ctx, func(ctx context.Context, tx kv.Tx) error {
		fromBalance, err := get(ctx, tx, Key(token, from))
		if err != nil {
			return err
		}
		if fromBalance.LessThan(amount) {
			return dErrors.New(dErrors.CodeInsufficientBalance, "insufficient token balance")
		}
		next, err := fromBalance.Sub(amount)
		if err != nil {
			return err
		}
		if err := kv.SetJSON(ctx, tx, Key(token, from), next); err != nil {
			return err
		}

		toBalance, err := get(ctx, tx, Key(token, to))
		if err != nil {
			return err
		}
		credited, err := toBalance.Add(amount)
		if err != nil {
			return err
		}
		if err := kv.SetJSON(ctx, tx, Key(token, to), credited); err != nil {
			return err
		}

		l.logger.DebugContext(ctx, "token transferred",
			"token", token,
			"from", from,
			"to", to,
			"amount", amount.String(),
		)
		return nil
	})
}

func (l *Ledger) Balance(ctx context.Context, token, address domain.AccountID) (domain.Amount, error) {
	var balance domain.Amount
	err := l.store.RunInTx(ctx, func(ctx context.Context, tx kv.Tx) error {
		b, err := get(ctx, tx, Key(token, address))
		balance = b
		return err
	})
	return balance, err
}

// Credit adds amount to an account, funding treasuries in development and
// tests. It returns the new balance.
func (l *Ledger) Credit(ctx context.Context, token, to domain.AccountID, amount domain.Amount) (domain.Amount, error) {
	if amount.Sign() < 0 {
		return domain.Amount{}, dErrors.New(dErrors.CodeValidation, "amount must not be negative")
	}
	var balance domain.Amount
	err := l.store.RunInTx(ctx, func(ctx context.Context, tx kv.Tx) error {
		current, err := get(ctx, tx, Key(token, to))
		if err != nil {
			return err
		}
		if balance, err = current.Add(amount); err != nil {
			return err
		}
		return kv.SetJSON(ctx, tx, Key(token, to), balance)
	})
	if err != nil {
		return domain.Amount{}, err
	}
	return balance, nil
}

func get(ctx context.Context, tx kv.Tx, key string) (domain.Amount, error) {
	var amount domain.Amount
	if _, err := kv.GetJSON(ctx, tx, key, &amount); err != nil {
		return domain.Amount{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read token balance")
	}
	return amount, nil
}
