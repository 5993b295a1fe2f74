package models

import (
	"time"

	"desci/pkg/domain"
)

// Report is the receipt of one processed report payment. It is written in
// the same invocation as the charge and the contributor payouts, so a record
// exists exactly when the payment committed.
type Report struct {
	ReportID         domain.Tag       `json:"report_id"`
	Researcher       domain.AccountID `json:"researcher"`
	StudyHashes      []domain.Hash    `json:"study_hashes"`
	CreditsCharged   domain.Amount    `json:"credits_charged"`
	ContributorsPaid int              `json:"contributors_paid"`
	TotalUSDC        domain.Amount    `json:"total_usdc"`
	CreatedAt        time.Time        `json:"created_at"`
}
