package models

import "desci/pkg/domain"

// StudyRecord is the immutable registration of one study.
//
// Invariants:
//   - a record is written once and never modified or removed
//   - its hash appears exactly once in the owner's index
type StudyRecord struct {
	StudyHash       domain.Hash      `json:"study_hash"`
	OwnerWallet     domain.AccountID `json:"owner_wallet"`
	Timestamp       uint64           `json:"timestamp"`
	LabIdentifier   domain.Tag       `json:"lab_identifier"`
	AttestationHash domain.Hash      `json:"attestation_hash"`
}

// Metadata is the (timestamp, lab_identifier) projection of a record.
type Metadata struct {
	Timestamp     uint64     `json:"timestamp"`
	LabIdentifier domain.Tag `json:"lab_identifier"`
}

func (r *StudyRecord) Metadata() Metadata {
	return Metadata{Timestamp: r.Timestamp, LabIdentifier: r.LabIdentifier}
}
