// Package models holds the rate limiting result and wire types.
package models

import (
	"time"
)

// Limit is a request budget over a sliding window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds, only set when not allowed
}

// IPKey namespaces a bucket by client IP.
func IPKey(ip string) string {
	if ip == "" {
		ip = "unknown"
	}
	return "ratelimit:ip:" + ip
}

// ExceededResponse is written with 429 Too Many Requests.
type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}
