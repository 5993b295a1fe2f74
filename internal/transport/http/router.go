package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	biocredit "desci/internal/biocredit/handler"
	payment "desci/internal/payment/handler"
	"desci/internal/platform/metrics"
	"desci/internal/platform/middleware"
	ratelimit "desci/internal/ratelimit/middleware"
	registry "desci/internal/registry/handler"
	report "desci/internal/report/handler"
	"desci/pkg/platform/httputil"
	"desci/pkg/platform/middleware/admin"
	"desci/pkg/platform/middleware/metadata"
	"desci/pkg/platform/middleware/requesttime"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the handlers and infrastructure the router mounts.
type Deps struct {
	BioCredit  *biocredit.Handler
	Registry   *registry.Handler
	Payment    *payment.Handler
	Report     *report.Handler
	RateLimit  *ratelimit.Middleware
	AdminToken string
	Health     map[string]Pinger
	Metrics    *metrics.HTTP
	Logger     *slog.Logger
}

// NewRouter wires every public endpoint. Handlers stay thin and delegate to
// the domain services.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Recover(d.Logger))
	r.Use(middleware.Logger(d.Logger, d.Metrics))
	if d.RateLimit != nil {
		r.Use(d.RateLimit.LimitWrites)
	}

	r.Get("/health", healthHandler(d.Health))
	r.Handle("/metrics", promhttp.Handler())

	d.BioCredit.Register(r)
	d.Registry.Register(r)
	d.Payment.Register(r)
	d.Report.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(d.AdminToken, d.Logger))
		d.BioCredit.RegisterAdmin(r)
		d.Payment.RegisterAdmin(r)
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: map[string]string{}}
		status := http.StatusOK
		for name, p := range deps {
			if err := p.Ping(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
