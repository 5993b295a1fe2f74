package handler

import (
	"desci/internal/payment/service"
	"desci/pkg/domain"
	dErrors "desci/pkg/domain-errors"
)

const maxContributors = 1000

// DistributeRequest is the body of POST /payments/distribute. Amount list
// length is checked by the service so a mismatch surfaces as length_mismatch.
type DistributeRequest struct {
	Contributors []string        `json:"contributors"`
	Amounts      []domain.Amount `json:"amounts"`
	UsdcToken    string          `json:"usdc_token"`
	Treasury     string          `json:"treasury"`
	ReportID     string          `json:"report_id"`

	distribution service.Distribution
}

func (r *DistributeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Contributors) > maxContributors || len(r.Amounts) > maxContributors {
		return dErrors.New(dErrors.CodeValidation, "too many contributors")
	}
	reportID, err := domain.ParseTag(r.ReportID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid report_id")
	}
	contributors := make([]domain.AccountID, len(r.Contributors))
	for i, c := range r.Contributors {
		if contributors[i], err = domain.ParseAccountID(c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, "invalid contributor")
		}
	}
	d := service.Distribution{
		Contributors: contributors,
		Amounts:      r.Amounts,
		ReportID:     reportID,
	}
	if r.UsdcToken != "" {
		if d.Token, err = domain.ParseAccountID(r.UsdcToken); err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, "invalid usdc_token")
		}
	}
	if r.Treasury != "" {
		if d.Treasury, err = domain.ParseAccountID(r.Treasury); err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, "invalid treasury")
		}
	}
	r.distribution = d
	return nil
}
