package middleware

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"

	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/httputil"
	"github.com/gramv/onboardingsoftware-sub000/pkg/requestcontext"
)

// ReviewerValidator validates a reviewer bearer token.
type ReviewerValidator interface {
	ValidateReviewerToken(tokenString string) (requestcontext.ReviewerIdentity, error)
}

// RequireReviewer authenticates manager and HR users by bearer token and
// stores their identity in the request context.
func RequireReviewer(validator ReviewerValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			reviewer, err := validator.ValidateReviewerToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithReviewer(ctx, reviewer)))
		})
	}
}

// RequireRole rejects reviewers whose role is not in roles.
func RequireRole(roles ...requestcontext.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(roles, requestcontext.Reviewer(r.Context()).Role) {
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "role not permitted for this action"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter yields throttling middleware for a named scope.
type RateLimiter interface {
	Limit(scope string) func(http.Handler) http.Handler
}

// Throttle applies limiter's scope, or nothing when no limiter is configured.
func Throttle(limiter RateLimiter, scope string) func(http.Handler) http.Handler {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return limiter.Limit(scope)
}
