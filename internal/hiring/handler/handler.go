package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gramv/onboardingsoftware-sub000/internal/hiring/models"
	"github.com/gramv/onboardingsoftware-sub000/internal/hiring/service"
	"github.com/gramv/onboardingsoftware-sub000/internal/platform/middleware"
	"github.com/gramv/onboardingsoftware-sub000/internal/ratelimit"
	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/httputil"
	strs "github.com/gramv/onboardingsoftware-sub000/pkg/platform/strings"
)

// maxImportBytes bounds an uploaded applicant spreadsheet.
const maxImportBytes = 10 << 20

// Service defines the job application operations exposed over HTTP.
type Service interface {
	Submit(ctx context.Context, orgID id.OrganizationID, req models.SubmitRequest) (*models.JobApplication, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.JobApplication, error)
	Get(ctx context.Context, appID id.ApplicationID) (*models.JobApplication, error)
	MarkReviewed(ctx context.Context, appID id.ApplicationID) (*models.JobApplication, error)
	Reject(ctx context.Context, appID id.ApplicationID, notes string) (*models.JobApplication, error)
	Approve(ctx context.Context, appID id.ApplicationID, offer models.JobOffer) (*service.ApprovalResult, error)
	Import(ctx context.Context, filename string, data []byte) (*service.ImportResult, error)
}

// Handler serves the public application form and the reviewer hiring queue.
type Handler struct {
	logger    *slog.Logger
	service   Service
	reviewers middleware.ReviewerValidator
	limiter   middleware.RateLimiter
}

type Option func(*Handler)

// WithRateLimiter throttles the public application form per client IP.
func WithRateLimiter(l middleware.RateLimiter) Option {
	return func(h *Handler) {
		h.limiter = l
	}
}

// New creates a new hiring Handler.
func New(svc Service, reviewers middleware.ReviewerValidator, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{logger: logger, service: svc, reviewers: reviewers}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the hiring routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.With(middleware.Throttle(h.limiter, ratelimit.ScopePublic)).
		Post("/organizations/{orgID}/applications", h.handleSubmit)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireReviewer(h.reviewers, h.logger))
		r.Get("/reviews/applications", h.handleList)
		r.Post("/reviews/applications/import", h.handleImport)
		r.Get("/reviews/applications/{id}", h.handleGet)
		r.Post("/reviews/applications/{id}/review", h.handleMarkReviewed)
		r.Post("/reviews/applications/{id}/reject", h.handleReject)
		r.Post("/reviews/applications/{id}/approve", h.handleApprove)
	})
}

type rejectRequest struct {
	Notes string `json:"notes"`
}

type approveResponse struct {
	Application *models.JobApplication `json:"application"`
	SessionID   id.SessionID           `json:"sessionId"`
	Token       string                 `json:"token"`
	ExpiresAt   time.Time              `json:"expiresAt"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	orgID, err := id.ParseOrganizationID(chi.URLParam(r, "orgID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req models.SubmitRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	app, err := h.service.Submit(r.Context(), orgID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, app)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := models.ListFilter{}
	for _, st := range strs.SplitListLower(r.URL.Query()["status"]...) {
		filter.Statuses = append(filter.Statuses, models.Status(st))
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer"))
			return
		}
		filter.Limit = n
	}
	apps, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if apps == nil {
		apps = []*models.JobApplication{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"applications": apps})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	appID, err := id.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	app, err := h.service.Get(r.Context(), appID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

func (h *Handler) handleMarkReviewed(w http.ResponseWriter, r *http.Request) {
	appID, err := id.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	app, err := h.service.MarkReviewed(r.Context(), appID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	appID, err := id.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req rejectRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	app, err := h.service.Reject(r.Context(), appID, req.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	appID, err := id.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var offer models.JobOffer
	if err := httputil.DecodeJSON(r, &offer); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.service.Approve(r.Context(), appID, offer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, approveResponse{
		Application: res.Application,
		SessionID:   res.Session.ID,
		Token:       res.Token,
		ExpiresAt:   res.Session.ExpiresAt,
	})
}

// handleImport accepts a multipart "file" part holding an .xlsx or .xls
// spreadsheet.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, dErrors.New(dErrors.CodeValidation, "spreadsheet exceeds the upload limit"))
			return
		}
		h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "file part is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read file part"))
		return
	}
	res, err := h.service.Import(r.Context(), header.Filename, data)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "hiring request failed",
			"request_id", middleware.GetRequestID(ctx),
			"path", r.URL.Path,
			"error", err,
		)
	} else {
		h.logger.WarnContext(ctx, "hiring request rejected",
			"request_id", middleware.GetRequestID(ctx),
			"path", r.URL.Path,
			"code", dErrors.CodeOf(err),
		)
	}
	httputil.WriteError(w, err)
}
