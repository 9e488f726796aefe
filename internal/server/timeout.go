package server

import (
	"context"
	"net/http"
	"time"
)

// DefaultRequestTimeout bounds every read request.
const DefaultRequestTimeout = 10 * time.Second

// TimeoutMiddleware attaches a deadline to the request context. Handlers
// must observe ctx.Done() themselves.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
