package handler

import (
	"desci/internal/registry/models"
	"desci/pkg/domain"
)

type StudyResponse struct {
	StudyHash       domain.Hash      `json:"study_hash"`
	OwnerWallet     domain.AccountID `json:"owner_wallet"`
	Timestamp       uint64           `json:"timestamp"`
	LabIdentifier   domain.Tag       `json:"lab_identifier"`
	AttestationHash domain.Hash      `json:"attestation_hash"`
}

type MetadataResponse struct {
	Timestamp     uint64     `json:"timestamp"`
	LabIdentifier domain.Tag `json:"lab_identifier"`
}

type StudyHashesResponse struct {
	Owner       domain.AccountID `json:"owner"`
	StudyHashes []domain.Hash    `json:"study_hashes"`
}

type StudiesResponse struct {
	Owner   domain.AccountID                 `json:"owner"`
	Studies map[domain.Hash]MetadataResponse `json:"studies"`
}

type ArtifactHashResponse struct {
	StudyHash domain.Hash `json:"study_hash"`
}

func FromStudies(owner domain.AccountID, studies map[domain.Hash]models.Metadata) StudiesResponse {
	out := StudiesResponse{Owner: owner, Studies: make(map[domain.Hash]MetadataResponse, len(studies))}
	for h, m := range studies {
		out.Studies[h] = MetadataResponse(m)
	}
	return out
}
