package handler

import "desci/pkg/domain"

type BalanceResponse struct {
	Account domain.AccountID `json:"account"`
	Balance domain.Amount    `json:"balance"`
}

// TransferResponse carries the sender's balance after the debit.
type TransferResponse struct {
	From    domain.AccountID `json:"from"`
	Balance domain.Amount    `json:"balance"`
}
