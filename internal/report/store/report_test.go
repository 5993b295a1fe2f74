package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"desci/internal/report/models"
	"desci/pkg/domain"
	"desci/pkg/platform/kv"
	"desci/pkg/platform/kv/memory"
	"desci/pkg/platform/sentinel"
)

type ReportStoreSuite struct {
	suite.Suite
	kv  *memory.Store
	ctx context.Context
}

func TestReportStoreSuite(t *testing.T) {
	suite.Run(t, new(ReportStoreSuite))
}

func (s *ReportStoreSuite) SetupTest() {
	s.kv = memory.New()
	s.ctx = context.Background()
}

func (s *ReportStoreSuite) inTx(fn func(ctx context.Context, tx kv.Tx) error) {
	s.Require().NoError(s.kv.RunInTx(s.ctx, fn))
}

func hashOf(b byte) domain.Hash {
	var h domain.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func (s *ReportStoreSuite) TestSaveAndFind() {
	rep := &models.Report{
		ReportID:         "RPT_1",
		Researcher:       "researcher-1",
		StudyHashes:      []domain.Hash{hashOf(1), hashOf(2)},
		CreditsCharged:   domain.NewAmount(1),
		ContributorsPaid: 2,
		TotalUSDC:        domain.NewAmount(100_000_000),
		CreatedAt:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	s.inTx(func(ctx context.Context, tx kv.Tx) error {
		return NewReportStore(tx).Save(ctx, rep)
	})

	s.inTx(func(ctx context.Context, tx kv.Tx) error {
		reports := NewReportStore(tx)
		exists, err := reports.Exists(ctx, "RPT_1")
		s.Require().NoError(err)
		s.True(exists)

		found, err := reports.Find(ctx, "RPT_1")
		s.Require().NoError(err)
		s.Equal(rep, found)
		return nil
	})
}

func (s *ReportStoreSuite) TestFindMissing() {
	s.inTx(func(ctx context.Context, tx kv.Tx) error {
		exists, err := NewReportStore(tx).Exists(ctx, "RPT_X")
		s.Require().NoError(err)
		s.False(exists)

		_, err = NewReportStore(tx).Find(ctx, "RPT_X")
		s.ErrorIs(err, sentinel.ErrNotFound)
		return nil
	})
}

func (s *ReportStoreSuite) TestResearcherIndexKeepsInsertionOrder() {
	s.inTx(func(ctx context.Context, tx kv.Tx) error {
		index := NewResearcherIndexStore(tx)
		empty, err := index.List(ctx, "researcher-1")
		s.Require().NoError(err)
		s.Empty(empty)
		s.NotNil(empty)

		for _, id := range []domain.Tag{"B", "A", "C"} {
			s.Require().NoError(index.Append(ctx, "researcher-1", id))
		}
		return nil
	})

	s.inTx(func(ctx context.Context, tx kv.Tx) error {
		ids, err := NewResearcherIndexStore(tx).List(ctx, "researcher-1")
		s.Require().NoError(err)
		s.Equal([]domain.Tag{"B", "A", "C"}, ids)

		other, err := NewResearcherIndexStore(tx).List(ctx, "researcher-2")
		s.Require().NoError(err)
		s.Empty(other)
		return nil
	})
}
