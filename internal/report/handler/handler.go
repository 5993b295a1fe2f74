package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"desci/internal/report/models"
	"desci/pkg/domain"
	dErrors "desci/pkg/domain-errors"
	"desci/pkg/platform/httputil"
	"desci/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/service-mocks.go -package=mocks Service

type Service interface {
	ProcessPayment(ctx context.Context, researcher domain.AccountID, reportID domain.Tag, studyHashes []domain.Hash) (*models.Report, error)
	Report(ctx context.Context, reportID domain.Tag) (*models.Report, error)
	ReportsByResearcher(ctx context.Context, researcher domain.AccountID, limit int) ([]*models.Report, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/reports/{reportID}/payment", h.HandleProcessPayment)
	r.Get("/reports/{reportID}", h.HandleReport)
	r.Get("/researchers/{account}/reports", h.HandleReportsByResearcher)
}

// HandleProcessPayment handles POST /reports/{reportID}/payment.
func (h *Handler) HandleProcessPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	reportID, err := domain.ParseTag(chi.URLParam(r, "reportID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid report id"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[ProcessPaymentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.ProcessPayment(ctx, req.researcher, reportID, req.studyHashes)
	if err != nil {
		h.logger.ErrorContext(ctx, "report payment failed",
			"request_id", requestID,
			"report_id", reportID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "report payment handled",
		"request_id", requestID,
		"report_id", reportID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleReport handles GET /reports/{reportID}.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reportID, err := domain.ParseTag(chi.URLParam(r, "reportID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid report id"))
		return
	}
	rep, err := h.service.Report(ctx, reportID)
	if err != nil {
		h.readFailed(ctx, "get report failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rep)
}

// HandleReportsByResearcher handles GET /researchers/{account}/reports.
// An optional ?limit= keeps only the newest receipts.
func (h *Handler) HandleReportsByResearcher(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	researcher, err := domain.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a non-negative integer"))
			return
		}
	}
	reports, err := h.service.ReportsByResearcher(ctx, researcher, limit)
	if err != nil {
		h.readFailed(ctx, "list reports failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ReportsResponse{Researcher: researcher, Reports: reports})
}

func (h *Handler) readFailed(ctx context.Context, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
		return
	}
	h.logger.InfoContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
}
