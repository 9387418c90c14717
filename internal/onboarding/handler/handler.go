package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gramv/onboardingsoftware-sub000/internal/documents"
	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/models"
	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/service"
	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/steps"
	"github.com/gramv/onboardingsoftware-sub000/internal/platform/middleware"
	"github.com/gramv/onboardingsoftware-sub000/internal/ratelimit"
	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/httputil"
	strs "github.com/gramv/onboardingsoftware-sub000/pkg/platform/strings"
	"github.com/gramv/onboardingsoftware-sub000/pkg/requestcontext"
)

// TokenHeader carries the applicant credential: the access code for walk-in
// sessions or the bearer token from the remote link.
const TokenHeader = "X-Onboarding-Token"

// multipartMemory is how much of an upload is held in memory before
// spilling to temporary files.
const multipartMemory = 4 << 20

// Service defines the onboarding operations exposed over HTTP.
type Service interface {
	IssueSession(ctx context.Context, req models.IssueRequest) (*service.IssueResult, error)
	GetByToken(ctx context.Context, raw string) (*models.Session, error)
	SubmitStep(ctx context.Context, raw string, key models.StepKey, payload json.RawMessage) (*models.Session, error)
	SkipStep(ctx context.Context, raw string, key models.StepKey) (*models.Session, error)
	JumpToStep(ctx context.Context, raw string, key models.StepKey) (*models.Session, error)
	AttachDocument(ctx context.Context, raw string, upload documents.Upload) (models.Document, error)
	Submit(ctx context.Context, raw string) (*models.Session, error)

	Review(ctx context.Context, sessionID id.SessionID, req models.ReviewRequest) (*models.Session, error)
	RetryMaterialization(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	Invalidate(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Session, error)
	Get(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	DocumentURL(ctx context.Context, sessionID id.SessionID, documentID id.DocumentID) (string, error)
}

// Handler serves the applicant portal and the reviewer session endpoints.
type Handler struct {
	logger    *slog.Logger
	service   Service
	reviewers middleware.ReviewerValidator
	limiter   middleware.RateLimiter
}

type Option func(*Handler)

// WithRateLimiter throttles the applicant routes per client IP.
func WithRateLimiter(l middleware.RateLimiter) Option {
	return func(h *Handler) {
		h.limiter = l
	}
}

// New creates a new onboarding Handler.
func New(svc Service, reviewers middleware.ReviewerValidator, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		logger:    logger,
		service:   svc,
		reviewers: reviewers,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the onboarding routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/onboarding", func(r chi.Router) {
		r.Use(middleware.Throttle(h.limiter, ratelimit.ScopeApplicant))
		r.Get("/session", h.handleGetSession)
		r.Put("/steps/{step}", h.handleSubmitStep)
		r.Post("/steps/{step}/skip", h.handleSkipStep)
		r.Post("/navigate", h.handleNavigate)
		r.Post("/documents", h.handleAttachDocument)
		r.Post("/submit", h.handleSubmit)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireReviewer(h.reviewers, h.logger))
		r.Post("/reviews/sessions", h.handleIssue)
		r.Get("/reviews/sessions", h.handleList)
		r.Get("/reviews/sessions/{id}", h.handleGet)
		r.Get("/reviews/sessions/{id}/documents/{documentID}", h.handleDocumentURL)
		r.Post("/reviews/sessions/{id}/approve", h.handleDecision(models.DecisionApprove))
		r.Post("/reviews/sessions/{id}/reject", h.handleDecision(models.DecisionReject))
		r.Post("/reviews/sessions/{id}/request-changes", h.handleDecision(models.DecisionRequestChanges))
		r.Post("/reviews/sessions/{id}/invalidate", h.handleInvalidate)
		r.With(middleware.RequireRole(requestcontext.RoleHR)).
			Post("/reviews/sessions/{id}/materialize", h.handleMaterialize)
	})
}

// sessionResponse is the session as rendered to clients. The token hash is
// blanked so it never leaves the service.
type sessionResponse struct {
	*models.Session
	TokenHash string `json:"tokenHash,omitempty"`
	Progress  int    `json:"progress"`
}

func toResponse(sess *models.Session) sessionResponse {
	return sessionResponse{Session: sess, Progress: steps.Progress(sess)}
}

type issueResponse struct {
	Session sessionResponse `json:"session"`
	Token   string          `json:"token"`
}

type navigateRequest struct {
	Step models.StepKey `json:"step"`
}

type documentURLResponse struct {
	URL string `json:"url"`
}

func applicantToken(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.Header.Get(TokenHeader))
	if raw == "" {
		return "", dErrors.New(dErrors.CodeTokenInvalid, "missing onboarding token")
	}
	return raw, nil
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	raw, err := applicantToken(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sess, err := h.service.GetByToken(r.Context(), raw)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(sess))
}

func (h *Handler) handleSubmitStep(w http.ResponseWriter, r *http.Request) {
	raw, err := applicantToken(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, documents.MaxUploadBytes))
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if !json.Valid(payload) {
		h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "request body must be JSON"))
		return
	}
	sess, err := h.service.SubmitStep(r.Context(), raw, models.StepKey(chi.URLParam(r, "step")), payload)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(sess))
}

func (h *Handler) handleSkipStep(w http.ResponseWriter, r *http.Request) {
	raw, err := applicantToken(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sess, err := h.service.SkipStep(r.Context(), raw, models.StepKey(chi.URLParam(r, "step")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(sess))
}

func (h *Handler) handleNavigate(w http.ResponseWriter, r *http.Request) {
	raw, err := applicantToken(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req navigateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	sess, err := h.service.JumpToStep(r.Context(), raw, req.Step)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(sess))
}

// handleAttachDocument accepts a multipart form with a "type" field, a
// "file" part and an optional "ocr" JSON object.
func (h *Handler) handleAttachDocument(w http.ResponseWriter, r *http.Request) {
	raw, err := applicantToken(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	upload, err := readUpload(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	doc, err := h.service.AttachDocument(r.Context(), raw, upload)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, doc)
}

func readUpload(w http.ResponseWriter, r *http.Request) (documents.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, documents.MaxUploadBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return documents.Upload{}, dErrors.New(dErrors.CodeValidation, "document exceeds the upload limit")
		}
		return documents.Upload{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid multipart form")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return documents.Upload{}, dErrors.New(dErrors.CodeBadRequest, "file part is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return documents.Upload{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read file part")
	}
	upload := documents.Upload{
		Type:        models.DocumentType(r.FormValue("type")),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	if ocr := r.FormValue("ocr"); ocr != "" {
		if err := json.Unmarshal([]byte(ocr), &upload.OCR); err != nil {
			return documents.Upload{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "ocr must be a JSON object of strings")
		}
	}
	return upload, nil
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	raw, err := applicantToken(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sess, err := h.service.Submit(r.Context(), raw)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(sess))
}

// handleIssue opens a session on behalf of the calling reviewer, who becomes
// the assigned manager.
func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req models.IssueRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	reviewer := requestcontext.Reviewer(r.Context())
	req.OrganizationID = reviewer.OrganizationID
	req.ManagerID = reviewer.UserID

	res, err := h.service.IssueSession(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, issueResponse{Session: toResponse(res.Session), Token: res.Token})
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

	sessions, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, toResponse(sess))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sess, err := h.service.Get(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(sess))
}

func (h *Handler) handleDocumentURL(w http.ResponseWriter, r *http.Request) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	documentID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	link, err := h.service.DocumentURL(r.Context(), sessionID, documentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, documentURLResponse{URL: link})
}

func (h *Handler) handleDecision(decision models.Decision) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := id.ParseSessionID(chi.URLParam(r, "id"))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		var req models.ReviewRequest
		if err := httputil.DecodeOptionalJSON(r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}
		req.Decision = decision

		sess, err := h.service.Review(r.Context(), sessionID, req)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, toResponse(sess))
	}
}

func (h *Handler) handleMaterialize(w http.ResponseWriter, r *http.Request) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sess, err := h.service.RetryMaterialization(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(sess))
}

func (h *Handler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sess, err := h.service.Invalidate(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(sess))
}

// writeError logs server-side failures at error level and client mistakes
// at warn level before rendering the coded error.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "onboarding request failed",
			"request_id", middleware.GetRequestID(ctx),
			"path", r.URL.Path,
			"error", err,
		)
	} else {
		h.logger.WarnContext(ctx, "onboarding request rejected",
			"request_id", middleware.GetRequestID(ctx),
			"path", r.URL.Path,
			"code", dErrors.CodeOf(err),
		)
	}
	httputil.WriteError(w, err)
}
