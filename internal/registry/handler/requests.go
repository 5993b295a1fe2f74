package handler

import (
	"desci/internal/registry/service"
	"desci/pkg/domain"
	dErrors "desci/pkg/domain-errors"
)

// RegisterStudyRequest is the body of POST /studies.
type RegisterStudyRequest struct {
	StudyHash       string  `json:"study_hash"`
	OwnerWallet     string  `json:"owner_wallet"`
	Timestamp       *uint64 `json:"timestamp"`
	LabIdentifier   string  `json:"lab_identifier"`
	AttestationHash string  `json:"attestation_hash"`

	parsed service.RegisterStudyRequest
}

// Validate parses every field. Timestamps are caller supplied and not
// checked against the clock.
func (r *RegisterStudyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Timestamp == nil {
		return dErrors.New(dErrors.CodeValidation, "timestamp is required")
	}
	studyHash, err := domain.ParseHash(r.StudyHash)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid study_hash")
	}
	owner, err := domain.ParseAccountID(r.OwnerWallet)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid owner_wallet")
	}
	lab, err := domain.ParseTag(r.LabIdentifier)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid lab_identifier")
	}
	attestation, err := domain.ParseHash(r.AttestationHash)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid attestation_hash")
	}
	r.parsed = service.RegisterStudyRequest{
		StudyHash:       studyHash,
		OwnerWallet:     owner,
		Timestamp:       *r.Timestamp,
		LabIdentifier:   lab,
		AttestationHash: attestation,
	}
	return nil
}
