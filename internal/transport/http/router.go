// Package httptransport assembles the chi router shared by every domain
// handler and serves the operational endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gramv/onboardingsoftware-sub000/internal/platform/metrics"
	"github.com/gramv/onboardingsoftware-sub000/internal/platform/middleware"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/httputil"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/middleware/metadata"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/middleware/requesttime"
)

const (
	requestTimeout     = 30 * time.Second
	healthCheckTimeout = 2 * time.Second
)

// Registrar is implemented by every domain handler.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck checks one backing dependency.
type HealthCheck func(ctx context.Context) error

// Config carries what the router needs besides the domain handlers.
type Config struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Checks   map[string]HealthCheck
	// TrustedProxies may set X-Forwarded-For; everyone else is keyed by
	// their peer address.
	TrustedProxies []netip.Prefix
}

// NewRouter wires the common middleware chain, the operational endpoints and
// every handler.
func NewRouter(cfg Config, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata(cfg.TrustedProxies))
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Latency(cfg.Metrics))

	r.Get("/health", healthHandler(cfg.Checks))
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := check(ctx)
			cancel()
			if err != nil {
				resp.Checks[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
