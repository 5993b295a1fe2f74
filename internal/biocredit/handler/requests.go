package handler

import (
	"desci/pkg/domain"
	dErrors "desci/pkg/domain-errors"
)

// MintRequest is the body of POST /biocredit/mint.
type MintRequest struct {
	To     string        `json:"to"`
	Amount domain.Amount `json:"amount"`

	to     domain.AccountID
	amount domain.Amount
}

func (r *MintRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	to, err := domain.ParseAccountID(r.To)
	if err != nil {
		return err
	}
	if r.Amount.Sign() < 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must not be negative")
	}
	r.to = to
	r.amount = r.Amount
	return nil
}

// TransferRequest is the body of POST /biocredit/transfer.
type TransferRequest struct {
	From   string        `json:"from"`
	To     string        `json:"to"`
	Amount domain.Amount `json:"amount"`

	from   domain.AccountID
	to     domain.AccountID
	amount domain.Amount
}

func (r *TransferRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	from, err := domain.ParseAccountID(r.From)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "from: invalid account")
	}
	to, err := domain.ParseAccountID(r.To)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "to: invalid account")
	}
	if r.Amount.Sign() < 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must not be negative")
	}
	r.from, r.to, r.amount = from, to, r.Amount
	return nil
}
