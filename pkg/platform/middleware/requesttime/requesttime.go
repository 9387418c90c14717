// Package requesttime provides middleware for request-scoped time.
// All operations within a single HTTP request use the same "now", so a
// session's UpdatedAt, its history entry and the expiry check agree.
package requesttime

import (
	"net/http"
	"time"

	"github.com/gramv/onboardingsoftware-sub000/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return MiddlewareWithClock(time.Now)(next)
}

// MiddlewareWithClock is Middleware with an injectable clock.
func MiddlewareWithClock(clock func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), clock().UTC())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
