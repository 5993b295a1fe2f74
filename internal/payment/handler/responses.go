package handler

import "desci/pkg/domain"

type DistributeResponse struct {
	ReportID domain.Tag `json:"report_id"`
	Paid     int        `json:"paid"`
	Skipped  int        `json:"skipped"`
}

type BalanceResponse struct {
	Token   domain.AccountID `json:"token"`
	Account domain.AccountID `json:"account"`
	Balance domain.Amount    `json:"balance"`
}
