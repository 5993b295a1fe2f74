package handler

import (
	"desci/pkg/domain"
	dErrors "desci/pkg/domain-errors"
)

// ProcessPaymentRequest is the body of POST /reports/{reportID}/payment.
type ProcessPaymentRequest struct {
	Researcher  string   `json:"researcher"`
	StudyHashes []string `json:"study_hashes"`

	researcher  domain.AccountID
	studyHashes []domain.Hash
}

func (r *ProcessPaymentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	researcher, err := domain.ParseAccountID(r.Researcher)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid researcher")
	}
	if len(r.StudyHashes) == 0 {
		return dErrors.New(dErrors.CodeValidation, "study_hashes is required")
	}
	hashes := make([]domain.Hash, len(r.StudyHashes))
	for i, s := range r.StudyHashes {
		if hashes[i], err = domain.ParseHash(s); err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, "invalid study hash")
		}
	}
	r.researcher = researcher
	r.studyHashes = hashes
	return nil
}
