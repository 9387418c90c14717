package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gramv/onboardingsoftware-sub000/internal/employee/models"
	"github.com/gramv/onboardingsoftware-sub000/internal/platform/middleware"
	"github.com/gramv/onboardingsoftware-sub000/internal/ratelimit"
	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/httputil"
	"github.com/gramv/onboardingsoftware-sub000/pkg/requestcontext"
)

// Service defines the employee operations exposed over HTTP.
type Service interface {
	Get(ctx context.Context, orgID id.OrganizationID, employeeID id.EmployeeID) (*models.Record, error)
	Activate(ctx context.Context, employeeID id.EmployeeID, code string) error
}

// Handler serves employee lookups for reviewers and account activation for
// new hires.
type Handler struct {
	logger    *slog.Logger
	service   Service
	reviewers middleware.ReviewerValidator
	limiter   middleware.RateLimiter
}

type Option func(*Handler)

// WithRateLimiter throttles activation attempts per client IP.
func WithRateLimiter(l middleware.RateLimiter) Option {
	return func(h *Handler) {
		h.limiter = l
	}
}

// New creates a new employee Handler.
func New(svc Service, reviewers middleware.ReviewerValidator, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{logger: logger, service: svc, reviewers: reviewers}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the employee routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.With(middleware.Throttle(h.limiter, ratelimit.ScopeActivation)).
		Post("/employees/{id}/activate", h.handleActivate)

	r.With(middleware.RequireReviewer(h.reviewers, h.logger)).
		Get("/reviews/employees/{id}", h.handleGet)
}

type activateRequest struct {
	Code string `json:"code"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	employeeID, err := id.ParseEmployeeID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rec, err := h.service.Get(ctx, requestcontext.Reviewer(ctx).OrganizationID, employeeID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	employeeID, err := id.ParseEmployeeID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req activateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Code == "" {
		h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "activation code is required"))
		return
	}
	if err := h.service.Activate(r.Context(), employeeID, req.Code); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "employee request failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
	} else {
		h.logger.WarnContext(ctx, "employee request rejected",
			"request_id", middleware.GetRequestID(ctx),
			"code", dErrors.CodeOf(err),
		)
	}
	httputil.WriteError(w, err)
}
