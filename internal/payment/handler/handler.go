package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"desci/internal/payment/service"
	"desci/pkg/domain"
	"desci/pkg/platform/httputil"
	"desci/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/service-mocks.go -package=mocks Service

type Service interface {
	PayContributors(ctx context.Context, d service.Distribution) (int, error)
	GetBalance(ctx context.Context, token, address domain.AccountID) (domain.Amount, error)
}

// Defaults fill in the token and treasury when a request omits them.
type Defaults struct {
	Token    domain.AccountID
	Treasury domain.AccountID
}

type Handler struct {
	service  Service
	defaults Defaults
	logger   *slog.Logger
}

func New(service Service, defaults Defaults, logger *slog.Logger) *Handler {
	return &Handler{service: service, defaults: defaults, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/payments/tokens/{token}/balances/{account}", h.HandleBalance)
}

// RegisterAdmin mounts routes that move treasury funds. The router wraps
// them with the admin token guard.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/payments/distribute", h.HandleDistribute)
}

// HandleDistribute handles POST /payments/distribute.
func (h *Handler) HandleDistribute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[DistributeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	d := req.distribution
	if d.Token.IsZero() {
		d.Token = h.defaults.Token
	}
	if d.Treasury.IsZero() {
		d.Treasury = h.defaults.Treasury
	}

	paid, err := h.service.PayContributors(ctx, d)
	if err != nil {
		h.logger.ErrorContext(ctx, "distribution failed",
			"request_id", requestID,
			"report_id", d.ReportID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "distribution handled",
		"request_id", requestID,
		"report_id", d.ReportID,
		"paid", paid,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, DistributeResponse{
		ReportID: d.ReportID,
		Paid:     paid,
		Skipped:  len(d.Contributors) - paid,
	})
}

// HandleBalance handles GET /payments/tokens/{token}/balances/{account}.
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token, err := domain.ParseAccountID(chi.URLParam(r, "token"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	account, err := domain.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	balance, err := h.service.GetBalance(ctx, token, account)
	if err != nil {
		h.logger.ErrorContext(ctx, "token balance lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"token", token,
			"account", account,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{Token: token, Account: account, Balance: balance})
}
