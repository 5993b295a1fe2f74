package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"desci/pkg/domain"
	"desci/pkg/platform/httputil"
	"desci/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/service-mocks.go -package=mocks Service

// Service defines the balance ledger operations exposed over HTTP.
type Service interface {
	Mint(ctx context.Context, to domain.AccountID, amount domain.Amount) (domain.Amount, error)
	Balance(ctx context.Context, address domain.AccountID) (domain.Amount, error)
	Transfer(ctx context.Context, from, to domain.AccountID, amount domain.Amount) (domain.Amount, error)
}

// Handler wires balance ledger endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the public endpoints. Minting is mounted separately by
// RegisterAdmin so the router can put it behind the admin token.
func (h *Handler) Register(r chi.Router) {
	r.Get("/biocredit/balances/{account}", h.HandleBalance)
	r.Post("/biocredit/transfer", h.HandleTransfer)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/biocredit/mint", h.HandleMint)
}

// HandleMint handles POST /biocredit/mint.
func (h *Handler) HandleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[MintRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	balance, err := h.service.Mint(ctx, req.to, req.amount)
	if err != nil {
		h.logger.ErrorContext(ctx, "mint failed",
			"request_id", requestID,
			"account", req.To,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "mint handled",
		"request_id", requestID,
		"account", req.To,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{Account: req.to, Balance: balance})
}

// HandleBalance handles GET /biocredit/balances/{account}.
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, err := domain.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	balance, err := h.service.Balance(ctx, account)
	if err != nil {
		h.logger.ErrorContext(ctx, "balance lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"account", account,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{Account: account, Balance: balance})
}

// HandleTransfer handles POST /biocredit/transfer.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	remaining, err := h.service.Transfer(ctx, req.from, req.to, req.amount)
	if err != nil {
		h.logger.ErrorContext(ctx, "transfer failed",
			"request_id", requestID,
			"from", req.From,
			"to", req.To,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "transfer handled",
		"request_id", requestID,
		"from", req.From,
		"to", req.To,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, TransferResponse{From: req.from, Balance: remaining})
}
