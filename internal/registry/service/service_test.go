package service

import (
	"bytes"
	"context"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"desci/internal/registry/models"
	"desci/internal/registry/store"
	"desci/pkg/domain"
	dErrors "desci/pkg/domain-errors"
	"desci/pkg/platform/events"
	evmemory "desci/pkg/platform/events/memory"
	"desci/pkg/platform/invocation"
	"desci/pkg/platform/kv"
	kvmemory "desci/pkg/platform/kv/memory"
)

type RegistrySuite struct {
	suite.Suite
	kv      *kvmemory.Store
	sink    *evmemory.Sink
	service *Service
	ctx     context.Context
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.kv = kvmemory.New()
	s.sink = evmemory.NewSink()
	s.service = New(invocation.NewRunner(s.kv, invocation.WithSink(s.sink)))
	s.ctx = context.Background()
}

func filled(b byte) domain.Hash {
	var h domain.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func (s *RegistrySuite) register(hash domain.Hash, owner domain.AccountID, ts uint64) {
	s.Require().NoError(s.service.RegisterStudy(s.ctx, RegisterStudyRequest{
		StudyHash:       hash,
		OwnerWallet:     owner,
		Timestamp:       ts,
		LabIdentifier:   "LAB_001",
		AttestationHash: filled(0x01),
	}))
}

func (s *RegistrySuite) TestRegisterAndRead() {
	s.register(filled(0x00), "O", 12345)

	rec, err := s.service.StudyData(s.ctx, filled(0x00))
	s.Require().NoError(err)
	s.Equal(&models.StudyRecord{
		StudyHash:       filled(0x00),
		OwnerWallet:     "O",
		Timestamp:       12345,
		LabIdentifier:   "LAB_001",
		AttestationHash: filled(0x01),
	}, rec)

	meta, err := s.service.StudyMetadata(s.ctx, filled(0x00))
	s.Require().NoError(err)
	s.Equal(models.Metadata{Timestamp: 12345, LabIdentifier: "LAB_001"}, meta)

	hashes, err := s.service.StudyHashesByOwner(s.ctx, "O")
	s.Require().NoError(err)
	s.Equal([]domain.Hash{filled(0x00)}, hashes)

	byOwner, err := s.service.StudiesByOwner(s.ctx, "O")
	s.Require().NoError(err)
	s.Equal(map[domain.Hash]models.Metadata{filled(0x00): meta}, byOwner)
}

func (s *RegistrySuite) TestRegisterEmitsStudyRegistered() {
	s.register(filled(0x00), "O", 12345)

	got := s.sink.ByTag(events.TopicStudyRegistered)
	s.Require().Len(got, 1)
	s.Equal([]string{events.TopicStudyRegistered, filled(0x00).String()}, got[0].Topics)

	var payload events.StudyRegistered
	s.Require().NoError(got[0].Decode(&payload))
	s.Equal(events.StudyRegistered{
		Owner:           "O",
		Timestamp:       12345,
		LabIdentifier:   "LAB_001",
		AttestationHash: filled(0x01),
	}, payload)
}

func (s *RegistrySuite) TestDuplicateRegistrationLeavesFirstRecord() {
	s.register(filled(0x00), "O", 12345)

	err := s.service.RegisterStudy(s.ctx, RegisterStudyRequest{
		StudyHash:     filled(0x00),
		OwnerWallet:   "P",
		Timestamp:     999,
		LabIdentifier: "LAB_002",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicateStudy))

	rec, err := s.service.StudyData(s.ctx, filled(0x00))
	s.Require().NoError(err)
	s.Equal(domain.AccountID("O"), rec.OwnerWallet)

	hashes, err := s.service.StudyHashesByOwner(s.ctx, "P")
	s.Require().NoError(err)
	s.Empty(hashes)
	s.Len(s.sink.Events(), 1, "the rejected registration emits nothing")
}

func (s *RegistrySuite) TestOwnerIndexOrder() {
	for i, b := range []byte{0x05, 0x02, 0x09} {
		s.register(filled(b), "O", uint64(i))
	}
	s.register(filled(0x07), "other", 1)

	hashes, err := s.service.StudyHashesByOwner(s.ctx, "O")
	s.Require().NoError(err)
	s.Equal([]domain.Hash{filled(0x05), filled(0x02), filled(0x09)}, hashes)

	byOwner, err := s.service.StudiesByOwner(s.ctx, "O")
	s.Require().NoError(err)
	s.Len(byOwner, 3)
}

func (s *RegistrySuite) TestUnknownOwnerIsEmpty() {
	hashes, err := s.service.StudyHashesByOwner(s.ctx, "nobody")
	s.Require().NoError(err)
	s.Empty(hashes)

	byOwner, err := s.service.StudiesByOwner(s.ctx, "nobody")
	s.Require().NoError(err)
	s.Empty(byOwner)
	s.Zero(s.kv.Len())
}

func (s *RegistrySuite) TestMissingStudy() {
	_, err := s.service.StudyData(s.ctx, filled(0xee))
	s.True(dErrors.HasCode(err, dErrors.CodeStudyNotFound))

	_, err = s.service.StudyMetadata(s.ctx, filled(0xee))
	s.True(dErrors.HasCode(err, dErrors.CodeStudyNotFound))
}

func (s *RegistrySuite) TestStudiesByOwnerAbortsOnDivergence() {
	s.register(filled(0x01), "O", 1)
	s.Require().NoError(s.kv.RunInTx(s.ctx, func(ctx context.Context, tx kv.Tx) error {
		return store.NewOwnerIndexStore(tx).Append(ctx, "O", filled(0x02))
	}))

	_, err := s.service.StudiesByOwner(s.ctx, "O")
	s.True(dErrors.HasCode(err, dErrors.CodeStudyNotFound))
}

func (s *RegistrySuite) TestRegisterValidation() {
	err := s.service.RegisterStudy(s.ctx, RegisterStudyRequest{StudyHash: filled(0x01), LabIdentifier: "LAB"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Zero(s.kv.Len())
}

func (s *RegistrySuite) TestHashArtifact() {
	s.Run("sha256", func() {
		h, err := s.service.HashArtifact(strings.NewReader("abc"))
		s.Require().NoError(err)
		s.Equal("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", h.String())
	})

	s.Run("keccak256", func() {
		svc := New(invocation.NewRunner(s.kv), WithHashAlgorithm(Keccak256))
		h, err := svc.HashArtifact(bytes.NewReader(nil))
		s.Require().NoError(err)
		want, _ := hex.DecodeString("c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
		s.Equal(want, h[:])
	})
}

func (s *RegistrySuite) TestParseHashAlgorithm() {
	a, err := ParseHashAlgorithm("keccak256")
	s.Require().NoError(err)
	s.Equal(Keccak256, a)

	_, err = ParseHashAlgorithm("md5")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
