// Package store holds the typed repositories behind the study registry.
package store

import (
	"context"
	"fmt"

	"desci/internal/registry/models"
	"desci/pkg/domain"
	"desci/pkg/platform/kv"
	"desci/pkg/platform/sentinel"
)

// StudyKey returns the storage key of a study record.
func StudyKey(hash domain.Hash) string {
	return "study/" + hash.String()
}

// OwnerKey returns the storage key of an owner's study index.
func OwnerKey(owner domain.AccountID) string {
	return "owner/" + string(owner)
}

// StudyStore maps study hashes to records.
type StudyStore struct {
	tx kv.Tx
}

func NewStudyStore(tx kv.Tx) *StudyStore {
	return &StudyStore{tx: tx}
}

func (s *StudyStore) Exists(ctx context.Context, hash domain.Hash) (bool, error) {
	return s.tx.Has(ctx, StudyKey(hash))
}

// Find returns the record or an error wrapping sentinel.ErrNotFound.
func (s *StudyStore) Find(ctx context.Context, hash domain.Hash) (*models.StudyRecord, error) {
	var rec models.StudyRecord
	found, err := kv.GetJSON(ctx, s.tx, StudyKey(hash), &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("study %s: %w", hash, sentinel.ErrNotFound)
	}
	return &rec, nil
}

func (s *StudyStore) Save(ctx context.Context, rec *models.StudyRecord) error {
	return kv.SetJSON(ctx, s.tx, StudyKey(rec.StudyHash), rec)
}

// OwnerIndexStore maps an owner to the ordered list of hashes they registered.
type OwnerIndexStore struct {
	tx kv.Tx
}

func NewOwnerIndexStore(tx kv.Tx) *OwnerIndexStore {
	return &OwnerIndexStore{tx: tx}
}

// List returns the owner's hashes in registration order; empty when the
// owner never registered anything.
func (s *OwnerIndexStore) List(ctx context.Context, owner domain.AccountID) ([]domain.Hash, error) {
	var hashes []domain.Hash
	if _, err := kv.GetJSON(ctx, s.tx, OwnerKey(owner), &hashes); err != nil {
		return nil, err
	}
	if hashes == nil {
		hashes = []domain.Hash{}
	}
	return hashes, nil
}

// Append adds hash to the end of the owner's index, creating it if needed.
func (s *OwnerIndexStore) Append(ctx context.Context, owner domain.AccountID, hash domain.Hash) error {
	hashes, err := s.List(ctx, owner)
	if err != nil {
		return err
	}
	return kv.SetJSON(ctx, s.tx, OwnerKey(owner), append(hashes, hash))
}
