// Package requesttime pins one "now" per request. Study registration events
// and invocation timestamps emitted while serving a request all carry it.
package requesttime

import (
	"net/http"
	"time"

	"desci/pkg/requestcontext"
)

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
