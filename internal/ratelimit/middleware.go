package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/httputil"
	"github.com/gramv/onboardingsoftware-sub000/pkg/requestcontext"
)

var rejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "onboarding_rate_limited_requests_total",
	Help: "Requests rejected by the per-IP rate limiter",
}, []string{"scope"})

// Scopes guarded by the limiter.
const (
	ScopeApplicant  = "applicant"
	ScopePublic     = "public"
	ScopeActivation = "activation"
)

// Policy is the allowance for one scope.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Limiter builds per-scope middleware over a Store.
type Limiter struct {
	store    Store
	policies map[string]Policy
	logger   *slog.Logger
}

// NewLimiter creates a Limiter. Scopes without a policy are not limited.
func NewLimiter(store Store, policies map[string]Policy, logger *slog.Logger) *Limiter {
	return &Limiter{store: store, policies: policies, logger: logger}
}

// Limit returns middleware counting requests per client IP within scope.
// A nil Limiter or a store failure lets the request through.
func (l *Limiter) Limit(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		policy, ok := l.policies[scope]
		if !ok || policy.Limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)
			if ip == "" {
				ip = r.RemoteAddr
			}

			res, err := l.store.Allow(ctx, scope+":"+ip, policy.Limit, policy.Window)
			if err != nil {
				l.logger.ErrorContext(ctx, "rate limit check failed",
					"scope", scope,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
			if !res.Allowed {
				rejectedTotal.WithLabelValues(scope).Inc()
				l.logger.WarnContext(ctx, "rate limit exceeded",
					"scope", scope,
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfter(requestcontext.Now(ctx))))
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
