package service

//go:generate mockgen -source=service.go -destination=mocks/service_mocks.go -package=mocks SessionIssuer

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gramv/onboardingsoftware-sub000/internal/hiring/importer"
	"github.com/gramv/onboardingsoftware-sub000/internal/hiring/metrics"
	"github.com/gramv/onboardingsoftware-sub000/internal/hiring/models"
	onboarding "github.com/gramv/onboardingsoftware-sub000/internal/onboarding/models"
	onboardingsvc "github.com/gramv/onboardingsoftware-sub000/internal/onboarding/service"
	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/audit"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/sentinel"
	"github.com/gramv/onboardingsoftware-sub000/pkg/requestcontext"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Store persists job applications. Decisions go through Execute so two
// reviewers cannot both decide one application.
type Store interface {
	Create(ctx context.Context, app *models.JobApplication) error
	FindByID(ctx context.Context, appID id.ApplicationID) (*models.JobApplication, error)
	List(ctx context.Context, orgID id.OrganizationID, filter models.ListFilter) ([]*models.JobApplication, error)
	Execute(ctx context.Context, appID id.ApplicationID, validate func(*models.JobApplication) error, mutate func(*models.JobApplication)) (*models.JobApplication, error)
}

// SessionIssuer opens the onboarding session for an approved applicant.
type SessionIssuer interface {
	IssueSession(ctx context.Context, req onboarding.IssueRequest) (*onboardingsvc.IssueResult, error)
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(context.Context) error) error
}

// Service manages job applications up to the point an onboarding session is
// issued.
type Service struct {
	store        Store
	issuer       SessionIssuer
	tx           TxRunner
	logger       *slog.Logger
	auditor      *audit.Recorder
	metrics      *metrics.Metrics
	payRateFloor float64
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithAuditor records audit events through r instead of a log-only recorder.
func WithAuditor(r *audit.Recorder) Option {
	return func(s *Service) {
		s.auditor = r
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTxRunner(tx TxRunner) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

// WithPayRateFloor overrides the minimum hourly rate an offer may carry.
func WithPayRateFloor(floor float64) Option {
	return func(s *Service) {
		if floor > 0 {
			s.payRateFloor = floor
		}
	}
}

func New(store Store, issuer SessionIssuer, opts ...Option) *Service {
	s := &Service{store: store, issuer: issuer, payRateFloor: models.DefaultPayRateFloor}
	for _, opt := range opts {
		opt(s)
	}
	if s.auditor == nil {
		s.auditor = audit.NewRecorder(s.logger)
	}
	return s
}

// ApprovalResult is an approved application and the session opened for it.
// Token is the cleartext credential and is only available here.
type ApprovalResult struct {
	Application *models.JobApplication
	Session     *onboarding.Session
	Token       string
}

// Submit records a public application for orgID.
func (s *Service) Submit(ctx context.Context, orgID id.OrganizationID, req models.SubmitRequest) (*models.JobApplication, error) {
	app, err := models.NewApplication(orgID, req, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, app); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save application")
	}
	s.metrics.IncrementSubmitted()
	s.logAudit(ctx, "application_submitted",
		"application_id", app.ID,
		"organization_id", app.OrganizationID,
		"position", app.Position,
	)
	return app, nil
}

// List returns the reviewer organization's applications, newest first.
func (s *Service) List(ctx context.Context, filter models.ListFilter) ([]*models.JobApplication, error) {
	reviewer, err := requireReviewer(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range filter.Statuses {
		if !st.IsValid() {
			return nil, dErrors.New(dErrors.CodeBadRequest, "unknown status "+string(st))
		}
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	filter.Limit = min(filter.Limit, maxListLimit)

	apps, err := s.store.List(ctx, reviewer.OrganizationID, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list applications")
	}
	return apps, nil
}

// Get returns one application of the reviewer's organization.
func (s *Service) Get(ctx context.Context, appID id.ApplicationID) (*models.JobApplication, error) {
	reviewer, err := requireReviewer(ctx)
	if err != nil {
		return nil, err
	}
	app, err := s.store.FindByID(ctx, appID)
	if err != nil {
		return nil, translateStoreError(err)
	}
	if app.OrganizationID != reviewer.OrganizationID {
		return nil, dErrors.New(dErrors.CodeNotFound, "application not found")
	}
	return app, nil
}

// MarkReviewed records that a manager has looked at a pending application.
func (s *Service) MarkReviewed(ctx context.Context, appID id.ApplicationID) (*models.JobApplication, error) {
	reviewer, err := requireReviewer(ctx)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	app, err := s.execute(ctx, reviewer, appID, (*models.JobApplication).CanMarkReviewed, func(a *models.JobApplication) {
		a.ApplyReviewed(reviewer.UserID, now)
	})
	if err != nil {
		return nil, err
	}
	s.decided(ctx, app, reviewer)
	return app, nil
}

// Reject closes an application. Notes are required.
func (s *Service) Reject(ctx context.Context, appID id.ApplicationID, notes string) (*models.JobApplication, error) {
	reviewer, err := requireReviewer(ctx)
	if err != nil {
		return nil, err
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, dErrors.New(dErrors.CodeReviewerNotesRequired, "notes are required to reject an application")
	}
	now := requestcontext.Now(ctx)
	app, err := s.execute(ctx, reviewer, appID, (*models.JobApplication).CanDecide, func(a *models.JobApplication) {
		a.ApplyRejection(reviewer.UserID, notes, now)
	})
	if err != nil {
		return nil, err
	}
	s.decided(ctx, app, reviewer)
	return app, nil
}

// Approve accepts the application with offer and issues the onboarding
// session. The application is claimed before issuing so a concurrent
// approval fails with a conflict instead of opening a second session. The
// claim is released again when issuing fails.
func (s *Service) Approve(ctx context.Context, appID id.ApplicationID, offer models.JobOffer) (*ApprovalResult, error) {
	start := time.Now()
	defer s.metrics.ObserveApprove(start)

	reviewer, err := requireReviewer(ctx)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	offer.Normalize()
	if offer.SupervisorID.IsNil() {
		offer.SupervisorID = reviewer.UserID
	}
	if err := offer.Validate(now, s.payRateFloor); err != nil {
		return nil, err
	}

	var before *models.JobApplication
	claimed, err := s.execute(ctx, reviewer, appID, func(a *models.JobApplication) error {
		if err := a.CanDecide(); err != nil {
			return err
		}
		before = a.Clone()
		return nil
	}, func(a *models.JobApplication) {
		a.ApplyApproval(reviewer.UserID, offer, now)
	})
	if err != nil {
		return nil, err
	}

	issued, err := s.issuer.IssueSession(ctx, onboarding.IssueRequest{
		OrganizationID: claimed.OrganizationID,
		ApplicationID:  &claimed.ID,
		Candidate: onboarding.Candidate{
			FirstName:  claimed.Applicant.FirstName,
			LastName:   claimed.Applicant.LastName,
			Email:      claimed.Applicant.Email,
			Phone:      claimed.Applicant.Phone,
			Position:   claimed.Position,
			Department: claimed.Department,
		},
		ManagerID: offer.SupervisorID,
		Offer:     offer.Offer(),
		Delivery:  offer.Delivery,
	})
	if err != nil {
		s.release(ctx, appID, before)
		return nil, err
	}

	sessionID := issued.Session.ID
	linked, err := s.store.Execute(ctx, appID, nil, func(a *models.JobApplication) {
		a.SessionID = &sessionID
		a.UpdatedAt = now
	})
	if err != nil {
		// The session exists and is reachable by its token; only the
		// back-reference is missing.
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to link application to session",
				"error", err,
				"application_id", appID,
				"session_id", sessionID,
			)
		}
		claimed.SessionID = &sessionID
		linked = claimed
	}

	s.decided(ctx, linked, reviewer, "session_id", sessionID, "delivery", offer.Delivery)
	return &ApprovalResult{Application: linked, Session: issued.Session, Token: issued.Token}, nil
}

// release restores the pre-approval state of an application after session
// issuance failed.
func (s *Service) release(ctx context.Context, appID id.ApplicationID, before *models.JobApplication) {
	_, err := s.store.Execute(ctx, appID, func(a *models.JobApplication) error {
		if a.Status != models.StatusApproved || a.SessionID != nil {
			return sentinel.ErrInvalidState
		}
		return nil
	}, func(a *models.JobApplication) {
		version := a.Version
		*a = *before.Clone()
		a.Version = version
	})
	if err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to release application claim", "error", err, "application_id", appID)
	}
}

// RowFailure reports a spreadsheet row that could not be imported.
type RowFailure struct {
	Line    int               `json:"line"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Created []*models.JobApplication `json:"created"`
	Failed  []RowFailure             `json:"failed"`
}

// Import creates pending applications from an uploaded spreadsheet. Invalid
// rows are reported and skipped; a storage failure aborts the whole import.
func (s *Service) Import(ctx context.Context, filename string, data []byte) (*ImportResult, error) {
	reviewer, err := requireReviewer(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := importer.Parse(filename, data)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	result := &ImportResult{Created: []*models.JobApplication{}, Failed: []RowFailure{}}
	var apps []*models.JobApplication
	seen := map[string]int{}
	for _, row := range rows {
		app, err := models.NewApplication(reviewer.OrganizationID, row.Request, now)
		if err != nil {
			result.Failed = append(result.Failed, RowFailure{
				Line:    row.Line,
				Message: messageOf(err),
				Fields:  dErrors.FieldsOf(err),
			})
			continue
		}
		key := app.Applicant.Email + "|" + app.Position
		if line, dup := seen[key]; dup {
			result.Failed = append(result.Failed, RowFailure{
				Line:    row.Line,
				Message: "duplicate of an earlier row",
				Fields:  map[string]string{"line": strconv.Itoa(line)},
			})
			continue
		}
		seen[key] = row.Line
		apps = append(apps, app)
	}

	err = s.runInTx(ctx, func(ctx context.Context) error {
		for _, app := range apps {
			if err := s.store.Create(ctx, app); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save imported applications")
	}
	if len(apps) > 0 {
		result.Created = apps
	}

	s.metrics.AddImported("created", len(result.Created))
	s.metrics.AddImported("failed", len(result.Failed))
	s.logAudit(ctx, "applications_imported",
		"organization_id", reviewer.OrganizationID,
		"reviewer_id", reviewer.UserID,
		"created", len(result.Created),
		"failed", len(result.Failed),
	)
	return result, nil
}

func (s *Service) execute(ctx context.Context, reviewer requestcontext.ReviewerIdentity, appID id.ApplicationID, check func(*models.JobApplication) error, mutate func(*models.JobApplication)) (*models.JobApplication, error) {
	app, err := s.store.Execute(ctx, appID, func(a *models.JobApplication) error {
		if a.OrganizationID != reviewer.OrganizationID {
			return dErrors.New(dErrors.CodeNotFound, "application not found")
		}
		return check(a)
	}, mutate)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return app, nil
}

func (s *Service) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.RunInTx(ctx, fn)
}

func (s *Service) decided(ctx context.Context, app *models.JobApplication, reviewer requestcontext.ReviewerIdentity, extra ...any) {
	s.metrics.IncrementDecision(string(app.Status))
	attrs := append([]any{
		"application_id", app.ID,
		"organization_id", app.OrganizationID,
		"reviewer_id", reviewer.UserID,
		"reviewer_role", reviewer.Role,
		"status", app.Status,
	}, extra...)
	s.logAudit(ctx, "application_"+string(app.Status), attrs...)
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	s.auditor.Record(ctx, event, attributes...)
}

func requireReviewer(ctx context.Context) (requestcontext.ReviewerIdentity, error) {
	reviewer := requestcontext.Reviewer(ctx)
	if reviewer.UserID.IsNil() || reviewer.OrganizationID.IsNil() || !reviewer.Role.IsValid() {
		return requestcontext.ReviewerIdentity{}, dErrors.New(dErrors.CodeUnauthorized, "reviewer authentication required")
	}
	return reviewer, nil
}

func translateStoreError(err error) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "application not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "application was modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "application store failure")
	}
}

func messageOf(err error) string {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
