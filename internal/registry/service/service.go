// Package service implements the study registry: content-addressed study
// records that are written once, plus a per-owner index of what each wallet
// registered.
package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"

	"golang.org/x/crypto/sha3"

	"desci/internal/registry/metrics"
	"desci/internal/registry/models"
	"desci/internal/registry/store"
	"desci/pkg/domain"
	dErrors "desci/pkg/domain-errors"
	"desci/pkg/platform/events"
	"desci/pkg/platform/invocation"
	"desci/pkg/platform/sentinel"
)

const contractName = "registry"

// HashAlgorithm selects the digest HashArtifact computes.
type HashAlgorithm string

const (
	SHA256    HashAlgorithm = "sha256"
	Keccak256 HashAlgorithm = "keccak256"
)

// ParseHashAlgorithm accepts "sha256" and "keccak256".
func ParseHashAlgorithm(s string) (HashAlgorithm, error) {
	switch HashAlgorithm(s) {
	case SHA256, Keccak256:
		return HashAlgorithm(s), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unsupported hash algorithm %q", s))
}

func (a HashAlgorithm) newHash() hash.Hash {
	if a == Keccak256 {
		return sha3.NewLegacyKeccak256()
	}
	return sha256.New()
}

type Runner interface {
	Invoke(ctx context.Context, contract, operation string, fn invocation.Func) error
}

// RegisterStudyRequest carries the arguments of RegisterStudy.
type RegisterStudyRequest struct {
	StudyHash       domain.Hash
	OwnerWallet     domain.AccountID
	Timestamp       uint64
	LabIdentifier   domain.Tag
	AttestationHash domain.Hash
}

type Service struct {
	runner    Runner
	algorithm HashAlgorithm
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(s *Service)

func WithHashAlgorithm(a HashAlgorithm) Option {
	return func(s *Service) {
		s.algorithm = a
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(runner Runner, opts ...Option) *Service {
	s := &Service{
		runner:    runner,
		algorithm: SHA256,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HashArtifact digests an uploaded study artifact into the hash callers
// register it under.
func (s *Service) HashArtifact(r io.Reader) (domain.Hash, error) {
	h := s.algorithm.newHash()
	if _, err := io.Copy(h, r); err != nil {
		return domain.Hash{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read artifact")
	}
	var out domain.Hash
	copy(out[:], h.Sum(nil))
	return out, nil
}

// RegisterStudy writes a new study record, appends it to the owner's index
// and emits STUDY_REGISTERED. A hash can be registered only once.
func (s *Service) RegisterStudy(ctx context.Context, req RegisterStudyRequest) error {
	if req.OwnerWallet.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "owner_wallet is required")
	}
	if req.LabIdentifier == "" {
		return dErrors.New(dErrors.CodeValidation, "lab_identifier is required")
	}

	err := s.runner.Invoke(ctx, contractName, "register_study", func(ctx context.Context, inv *invocation.Invocation) error {
		studies := store.NewStudyStore(inv.Tx())
		exists, err := studies.Exists(ctx, req.StudyHash)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check study")
		}
		if exists {
			return dErrors.New(dErrors.CodeDuplicateStudy, "study already registered")
		}

		rec := &models.StudyRecord{
			StudyHash:       req.StudyHash,
			OwnerWallet:     req.OwnerWallet,
			Timestamp:       req.Timestamp,
			LabIdentifier:   req.LabIdentifier,
			AttestationHash: req.AttestationHash,
		}
		if err := studies.Save(ctx, rec); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save study")
		}
		if err := store.NewOwnerIndexStore(inv.Tx()).Append(ctx, req.OwnerWallet, req.StudyHash); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update owner index")
		}

		return inv.Emit(ctx, []string{events.TopicStudyRegistered, req.StudyHash.String()}, events.StudyRegistered{
			Owner:           req.OwnerWallet,
			Timestamp:       req.Timestamp,
			LabIdentifier:   req.LabIdentifier,
			AttestationHash: req.AttestationHash,
		})
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeDuplicateStudy) {
			s.metrics.IncDuplicate()
		}
		s.logger.WarnContext(ctx, "study registration failed",
			"study_hash", req.StudyHash,
			"owner", req.OwnerWallet,
			"error", err,
		)
		return err
	}

	s.metrics.IncRegistered()
	s.logger.InfoContext(ctx, "study registered",
		"study_hash", req.StudyHash,
		"owner", req.OwnerWallet,
		"lab_identifier", req.LabIdentifier,
	)
	return nil
}

// StudyHashesByOwner returns the owner's hashes in registration order.
func (s *Service) StudyHashesByOwner(ctx context.Context, owner domain.AccountID) ([]domain.Hash, error) {
	var hashes []domain.Hash
	err := s.runner.Invoke(ctx, contractName, "get_study_hashes_by_owner", func(ctx context.Context, inv *invocation.Invocation) error {
		h, err := store.NewOwnerIndexStore(inv.Tx()).List(ctx, owner)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read owner index")
		}
		hashes = h
		return nil
	})
	s.metrics.IncLookup("get_study_hashes_by_owner", outcome(err))
	return hashes, err
}

// StudyData returns the full record of a registered study.
func (s *Service) StudyData(ctx context.Context, studyHash domain.Hash) (*models.StudyRecord, error) {
	var rec *models.StudyRecord
	err := s.runner.Invoke(ctx, contractName, "get_study_data", func(ctx context.Context, inv *invocation.Invocation) error {
		r, err := findStudy(ctx, store.NewStudyStore(inv.Tx()), studyHash)
		if err != nil {
			return err
		}
		rec = r
		return nil
	})
	s.metrics.IncLookup("get_study_data", outcome(err))
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// StudyMetadata returns the (timestamp, lab_identifier) of a registered study.
func (s *Service) StudyMetadata(ctx context.Context, studyHash domain.Hash) (models.Metadata, error) {
	var meta models.Metadata
	err := s.runner.Invoke(ctx, contractName, "get_study_metadata", func(ctx context.Context, inv *invocation.Invocation) error {
		rec, err := findStudy(ctx, store.NewStudyStore(inv.Tx()), studyHash)
		if err != nil {
			return err
		}
		meta = rec.Metadata()
		return nil
	})
	s.metrics.IncLookup("get_study_metadata", outcome(err))
	return meta, err
}

// StudiesByOwner returns the metadata of every study the owner registered.
// An index entry without a record fails the whole call.
func (s *Service) StudiesByOwner(ctx context.Context, owner domain.AccountID) (map[domain.Hash]models.Metadata, error) {
	var out map[domain.Hash]models.Metadata
	err := s.runner.Invoke(ctx, contractName, "get_studies_by_owner", func(ctx context.Context, inv *invocation.Invocation) error {
		hashes, err := store.NewOwnerIndexStore(inv.Tx()).List(ctx, owner)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read owner index")
		}
		studies := store.NewStudyStore(inv.Tx())
		result := make(map[domain.Hash]models.Metadata, len(hashes))
		for _, h := range hashes {
			rec, err := findStudy(ctx, studies, h)
			if err != nil {
				if dErrors.HasCode(err, dErrors.CodeStudyNotFound) {
					s.metrics.IncIndexDivergence()
					s.logger.ErrorContext(ctx, "owner index references missing study",
						"owner", owner,
						"study_hash", h,
					)
				}
				return err
			}
			result[h] = rec.Metadata()
		}
		out = result
		return nil
	})
	s.metrics.IncLookup("get_studies_by_owner", outcome(err))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func findStudy(ctx context.Context, studies *store.StudyStore, h domain.Hash) (*models.StudyRecord, error) {
	rec, err := studies.Find(ctx, h)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeStudyNotFound, "study not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read study")
	}
	return rec, nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(dErrors.CodeOf(err))
}
