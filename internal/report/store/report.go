// Package store persists report receipts and the per-researcher index.
package store

import (
	"context"
	"fmt"

	"desci/internal/report/models"
	"desci/pkg/domain"
	"desci/pkg/platform/kv"
	"desci/pkg/platform/sentinel"
)

func ReportKey(id domain.Tag) string {
	return "report/" + string(id)
}

func ResearcherKey(researcher domain.AccountID) string {
	return "researcher/" + string(researcher)
}

// ReportStore maps report ids to receipts.
type ReportStore struct {
	tx kv.Tx
}

func NewReportStore(tx kv.Tx) *ReportStore {
	return &ReportStore{tx: tx}
}

func (s *ReportStore) Exists(ctx context.Context, id domain.Tag) (bool, error) {
	return s.tx.Has(ctx, ReportKey(id))
}

// Find returns the receipt or an error wrapping sentinel.ErrNotFound.
func (s *ReportStore) Find(ctx context.Context, id domain.Tag) (*models.Report, error) {
	var rep models.Report
	found, err := kv.GetJSON(ctx, s.tx, ReportKey(id), &rep)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("report %s: %w", id, sentinel.ErrNotFound)
	}
	return &rep, nil
}

func (s *ReportStore) Save(ctx context.Context, rep *models.Report) error {
	return kv.SetJSON(ctx, s.tx, ReportKey(rep.ReportID), rep)
}

// ResearcherIndexStore maps a researcher to their report ids, oldest first.
type ResearcherIndexStore struct {
	tx kv.Tx
}

func NewResearcherIndexStore(tx kv.Tx) *ResearcherIndexStore {
	return &ResearcherIndexStore{tx: tx}
}

func (s *ResearcherIndexStore) List(ctx context.Context, researcher domain.AccountID) ([]domain.Tag, error) {
	var ids []domain.Tag
	if _, err := kv.GetJSON(ctx, s.tx, ResearcherKey(researcher), &ids); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []domain.Tag{}
	}
	return ids, nil
}

func (s *ResearcherIndexStore) Append(ctx context.Context, researcher domain.AccountID, id domain.Tag) error {
	ids, err := s.List(ctx, researcher)
	if err != nil {
		return err
	}
	return kv.SetJSON(ctx, s.tx, ResearcherKey(researcher), append(ids, id))
}
