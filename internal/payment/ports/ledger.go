// Package ports declares what the payment distributor needs from the outside.
package ports

import (
	"context"

	"desci/pkg/domain"
)

//go:generate mockgen -source=ledger.go -destination=mocks/ledger-mocks.go -package=mocks TokenLedger

// TokenLedger is the external stablecoin ledger payouts are settled on.
// token identifies the asset on that ledger.
type TokenLedger interface {
	Transfer(ctx context.Context, token, from, to domain.AccountID, amount domain.Amount) error
	Balance(ctx context.Context, token, address domain.AccountID) (domain.Amount, error)
}
