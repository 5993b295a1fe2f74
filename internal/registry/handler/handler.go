package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"desci/internal/registry/models"
	"desci/internal/registry/service"
	"desci/pkg/domain"
	dErrors "desci/pkg/domain-errors"
	"desci/pkg/platform/httputil"
	"desci/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/service-mocks.go -package=mocks Service

// maxArtifactBytes caps uploaded study PDFs at 10 MiB.
const maxArtifactBytes = 10 << 20

// Service defines the registry operations exposed over HTTP.
type Service interface {
	RegisterStudy(ctx context.Context, req service.RegisterStudyRequest) error
	StudyHashesByOwner(ctx context.Context, owner domain.AccountID) ([]domain.Hash, error)
	StudyData(ctx context.Context, studyHash domain.Hash) (*models.StudyRecord, error)
	StudyMetadata(ctx context.Context, studyHash domain.Hash) (models.Metadata, error)
	StudiesByOwner(ctx context.Context, owner domain.AccountID) (map[domain.Hash]models.Metadata, error)
	HashArtifact(r io.Reader) (domain.Hash, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts registry endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/studies", h.HandleRegisterStudy)
	r.Post("/studies/artifact-hash", h.HandleHashArtifact)
	r.Get("/studies/{hash}", h.HandleStudyData)
	r.Get("/studies/{hash}/metadata", h.HandleStudyMetadata)
	r.Get("/owners/{owner}/study-hashes", h.HandleStudyHashesByOwner)
	r.Get("/owners/{owner}/studies", h.HandleStudiesByOwner)
}

// HandleRegisterStudy handles POST /studies.
func (h *Handler) HandleRegisterStudy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[RegisterStudyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.RegisterStudy(ctx, req.parsed); err != nil {
		h.logger.ErrorContext(ctx, "register study failed",
			"request_id", requestID,
			"study_hash", req.StudyHash,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "study registration handled",
		"request_id", requestID,
		"study_hash", req.StudyHash,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, StudyResponse{
		StudyHash:       req.parsed.StudyHash,
		OwnerWallet:     req.parsed.OwnerWallet,
		Timestamp:       req.parsed.Timestamp,
		LabIdentifier:   req.parsed.LabIdentifier,
		AttestationHash: req.parsed.AttestationHash,
	})
}

// HandleHashArtifact handles POST /studies/artifact-hash. The raw request
// body is the artifact.
func (h *Handler) HandleHashArtifact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hash, err := h.service.HashArtifact(http.MaxBytesReader(w, r.Body, maxArtifactBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = dErrors.Wrap(err, dErrors.CodePayloadTooLarge, "artifact exceeds 10 MiB")
		}
		h.logger.WarnContext(ctx, "artifact hashing failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ArtifactHashResponse{StudyHash: hash})
}

// HandleStudyData handles GET /studies/{hash}.
func (h *Handler) HandleStudyData(w http.ResponseWriter, r *http.Request) {
	hash, ok := h.hashParam(w, r)
	if !ok {
		return
	}
	rec, err := h.service.StudyData(r.Context(), hash)
	if err != nil {
		h.readFailed(r.Context(), "get study failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StudyResponse(*rec))
}

// HandleStudyMetadata handles GET /studies/{hash}/metadata.
func (h *Handler) HandleStudyMetadata(w http.ResponseWriter, r *http.Request) {
	hash, ok := h.hashParam(w, r)
	if !ok {
		return
	}
	meta, err := h.service.StudyMetadata(r.Context(), hash)
	if err != nil {
		h.readFailed(r.Context(), "get study metadata failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MetadataResponse(meta))
}

// HandleStudyHashesByOwner handles GET /owners/{owner}/study-hashes.
func (h *Handler) HandleStudyHashesByOwner(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.ownerParam(w, r)
	if !ok {
		return
	}
	hashes, err := h.service.StudyHashesByOwner(r.Context(), owner)
	if err != nil {
		h.readFailed(r.Context(), "list study hashes failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StudyHashesResponse{Owner: owner, StudyHashes: hashes})
}

// HandleStudiesByOwner handles GET /owners/{owner}/studies.
func (h *Handler) HandleStudiesByOwner(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.ownerParam(w, r)
	if !ok {
		return
	}
	studies, err := h.service.StudiesByOwner(r.Context(), owner)
	if err != nil {
		h.readFailed(r.Context(), "list studies failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromStudies(owner, studies))
}

func (h *Handler) hashParam(w http.ResponseWriter, r *http.Request) (domain.Hash, bool) {
	hash, err := domain.ParseHash(chi.URLParam(r, "hash"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.Hash{}, false
	}
	return hash, true
}

func (h *Handler) ownerParam(w http.ResponseWriter, r *http.Request) (domain.AccountID, bool) {
	owner, err := domain.ParseAccountID(chi.URLParam(r, "owner"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return owner, true
}

func (h *Handler) readFailed(ctx context.Context, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
		return
	}
	h.logger.InfoContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
}
