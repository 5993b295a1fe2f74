// Package store holds the typed repository for BioCredit balances.
package store

import (
	"context"

	"desci/pkg/domain"
	"desci/pkg/platform/kv"
)

// DefaultToken is the token tag balances are keyed under unless configured.
var DefaultToken = domain.MustTag("BALANCE")

// BalanceStore reads and writes balances for one token inside a transaction.
// Absent balances read as zero.
type BalanceStore struct {
	tx    kv.Tx
	token domain.Tag
}

// NewBalanceStore binds a store to tx.
func NewBalanceStore(tx kv.Tx, token domain.Tag) *BalanceStore {
	return &BalanceStore{tx: tx, token: token}
}

// Key returns the storage key of account's balance. Tags cannot contain '/',
// so keys of different tokens never collide.
func Key(token domain.Tag, account domain.AccountID) string {
	return "balance/" + string(token) + "/" + string(account)
}

func (s *BalanceStore) Get(ctx context.Context, account domain.AccountID) (domain.Amount, error) {
	var amount domain.Amount
	if _, err := kv.GetJSON(ctx, s.tx, Key(s.token, account), &amount); err != nil {
		return domain.Amount{}, err
	}
	return amount, nil
}

func (s *BalanceStore) Put(ctx context.Context, account domain.AccountID, amount domain.Amount) error {
	return kv.SetJSON(ctx, s.tx, Key(s.token, account), amount)
}
