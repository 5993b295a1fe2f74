// Package httpledger talks to a remote token ledger service over JSON/HTTP.
//
//	POST {base}/tokens/{token}/transfers          {"from","to","amount"}
//	GET  {base}/tokens/{token}/balances/{address} -> {"balance"}
//
// Amounts travel as decimal strings. Transfers accepted by the remote service
// are final; they do not roll back with the local invocation.
package httpledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"desci/pkg/domain"
	dErrors "desci/pkg/domain-errors"
	"desci/pkg/platform/circuit"
	"desci/pkg/platform/sentinel"
)

const (
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 1 << 20
)

type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying client, e.g. for custom transports.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.http.Timeout = d
		}
	}
}

// WithBreaker makes the client fail fast with sentinel.ErrUnavailable while
// the breaker is open. Transport errors and 5xx answers count as failures.
func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) {
		cl.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type transferRequest struct {
	From   domain.AccountID `json:"from"`
	To     domain.AccountID `json:"to"`
	Amount domain.Amount    `json:"amount"`
}

type balanceResponse struct {
	Balance domain.Amount `json:"balance"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (c *Client) Transfer(ctx context.Context, token, from, to domain.AccountID, amount domain.Amount) error {
	body, err := json.Marshal(transferRequest{From: from, To: to, Amount: amount})
	if err != nil {
		return fmt.Errorf("encode transfer: %w", err)
	}
	endpoint := c.baseURL + "/tokens/" + url.PathEscape(string(token)) + "/transfers"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	return nil
}

func (c *Client) Balance(ctx context.Context, token, address domain.AccountID) (domain.Amount, error) {
	endpoint := c.baseURL + "/tokens/" + url.PathEscape(string(token)) + "/balances/" + url.PathEscape(string(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Amount{}, fmt.Errorf("build balance request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return domain.Amount{}, err
	}
	defer resp.Body.Close()

	var out balanceResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return domain.Amount{}, fmt.Errorf("decode balance response: %w", err)
	}
	return out.Balance, nil
}

// do sends req and turns transport failures and non-2xx answers into errors.
// The caller closes the body of a successful response.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Accept", "application/json")
	if c.breaker != nil && !c.breaker.Allow() {
		return nil, fmt.Errorf("token ledger %s: %w", c.breaker.Name(), sentinel.ErrUnavailable)
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	c.record(req.Context(), err == nil && resp.StatusCode < 500)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "token ledger timed out")
		}
		return nil, fmt.Errorf("token ledger %s %s: %w", req.Method, req.URL.Path, err)
	}
	c.logger.DebugContext(req.Context(), "token ledger call",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	var apiErr errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&apiErr)
	msg := apiErr.ErrorDescription
	if msg == "" {
		msg = apiErr.Error
	}
	return nil, &StatusError{StatusCode: resp.StatusCode, Code: apiErr.Error, Message: msg}
}

func (c *Client) record(ctx context.Context, ok bool) {
	if c.breaker == nil {
		return
	}
	if ok {
		if _, change := c.breaker.RecordSuccess(); change.Closed {
			c.logger.InfoContext(ctx, "token ledger circuit closed", "breaker", c.breaker.Name())
		}
		return
	}
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "token ledger circuit opened", "breaker", c.breaker.Name())
	}
}

// StatusError is a non-2xx answer from the token ledger.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("token ledger returned %d", e.StatusCode)
	}
	return fmt.Sprintf("token ledger returned %d: %s", e.StatusCode, e.Message)
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
