// Package middleware throttles state-changing requests per client IP.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"desci/internal/ratelimit/metrics"
	"desci/internal/ratelimit/models"
	"desci/pkg/platform/circuit"
	"desci/pkg/platform/httputil"
	"desci/pkg/platform/middleware/metadata"
)

// BucketStore records a request against key and reports whether it fits the
// limit.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit models.Limit) (*models.Result, error)
}

type Middleware struct {
	primary  BucketStore
	fallback BucketStore
	breaker  *circuit.Breaker
	limit    models.Limit
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithFallback routes checks to fallback while breaker is open. Without it a
// primary error lets the request through.
func WithFallback(fallback BucketStore, breaker *circuit.Breaker) Option {
	return func(m *Middleware) {
		m.fallback = fallback
		m.breaker = breaker
	}
}

func WithMetrics(metrics *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = metrics
	}
}

// WithDisabled turns every check into a no-op, for local demos.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func New(store BucketStore, limit models.Limit, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		primary: store,
		limit:   limit,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// LimitWrites applies the limit to every request that is not a GET, HEAD or
// OPTIONS.
func (m *Middleware) LimitWrites(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled || isReadOnly(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		ip := metadata.GetClientIP(ctx)
		result, degraded, err := m.check(ctx, models.IPKey(ip))
		if err != nil {
			m.logger.ErrorContext(ctx, "rate limit check failed", "error", err, "client_ip", ip)
			m.metrics.IncDecision("error")
			next.ServeHTTP(w, r)
			return
		}

		addHeaders(w, result)
		if degraded {
			w.Header().Set("X-RateLimit-Status", "degraded")
		}
		if !result.Allowed {
			m.metrics.IncDecision("rejected")
			m.logger.WarnContext(ctx, "rate limit exceeded", "client_ip", ip, "path", r.URL.Path)
			writeExceeded(w, result)
			return
		}
		m.metrics.IncDecision("allowed")
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) check(ctx context.Context, key string) (*models.Result, bool, error) {
	if m.breaker == nil || m.fallback == nil {
		res, err := m.primary.Allow(ctx, key, m.limit)
		return res, false, err
	}

	if m.breaker.Allow() {
		res, err := m.primary.Allow(ctx, key, m.limit)
		if err == nil {
			if _, change := m.breaker.RecordSuccess(); change.Closed {
				m.logger.InfoContext(ctx, "rate limit store recovered", "breaker", m.breaker.Name())
				m.metrics.SetCircuitOpen(false)
			}
			return res, false, nil
		}
		if _, change := m.breaker.RecordFailure(); change.Opened {
			m.logger.WarnContext(ctx, "rate limit store unavailable, using in-memory buckets",
				"breaker", m.breaker.Name(),
				"error", err,
			)
			m.metrics.SetCircuitOpen(true)
		}
	}

	res, err := m.fallback.Allow(ctx, key, m.limit)
	return res, true, err
}

func isReadOnly(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func addHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeExceeded(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.ExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many write requests from this address. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}
