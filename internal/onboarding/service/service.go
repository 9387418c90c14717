package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	employee "github.com/gramv/onboardingsoftware-sub000/internal/employee/models"
	"github.com/gramv/onboardingsoftware-sub000/internal/documents"
	"github.com/gramv/onboardingsoftware-sub000/internal/notify"
	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/metrics"
	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/models"
	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/token"
	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/audit"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/sentinel"
	"github.com/gramv/onboardingsoftware-sub000/pkg/requestcontext"
)

const tracerName = "github.com/gramv/onboardingsoftware-sub000/internal/onboarding/service"

// SessionStore persists onboarding sessions. Every mutation goes through
// Execute so status changes are serialized per session.
type SessionStore interface {
	Create(ctx context.Context, sess *models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	ListByCandidate(ctx context.Context, orgID id.OrganizationID, email string) ([]*models.Session, error)
	ListByOrganization(ctx context.Context, orgID id.OrganizationID, filter models.ListFilter) ([]*models.Session, error)
	Execute(ctx context.Context, sessionID id.SessionID, validate func(*models.Session) error, mutate func(*models.Session)) (*models.Session, error)
	// LockCandidate serializes issuance for one candidate. Call release once
	// the unit of work has finished.
	LockCandidate(ctx context.Context, orgID id.OrganizationID, email string) (release func(), err error)
}

// TokenIndex caches token hash to session id lookups.
type TokenIndex interface {
	Put(ctx context.Context, tokenHash string, sessionID id.SessionID, expiresAt time.Time) error
	Lookup(ctx context.Context, tokenHash string) (id.SessionID, bool, error)
	Delete(ctx context.Context, tokenHash string) error
}

// Materializer creates the employee record for an approved session.
type Materializer interface {
	Materialize(ctx context.Context, sess *models.Session) (*employee.Record, error)
}

// TxRunner scopes a unit of work. A nil *postgres.TransactionManager runs the
// callback directly.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(context.Context) error) error
}

type Notifier interface {
	Notify(ctx context.Context, n notify.Notification) error
}

// Service orchestrates the onboarding workflow from token issuance to
// employee materialization.
type Service struct {
	sessions       SessionStore
	issuer         *token.Issuer
	materializer   Materializer
	documents      documents.Storage
	index          TokenIndex
	tx             TxRunner
	notifier       Notifier
	logger         *slog.Logger
	auditor        *audit.Recorder
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	portalBaseURL  string
	documentURLTTL time.Duration
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

func WithTokenIndex(index TokenIndex) Option {
	return func(s *Service) {
		s.index = index
	}
}

func WithTxRunner(tx TxRunner) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithPortalBaseURL sets the link prefix sent to remote candidates.
func WithPortalBaseURL(u string) Option {
	return func(s *Service) {
		s.portalBaseURL = u
	}
}

func New(sessions SessionStore, issuer *token.Issuer, materializer Materializer, storage documents.Storage, opts ...Option) *Service {
	s := &Service{
		sessions:       sessions,
		issuer:         issuer,
		materializer:   materializer,
		documents:      storage,
		tracer:         otel.Tracer(tracerName),
		documentURLTTL: 15 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.auditor == nil {
		s.auditor = audit.NewRecorder(s.logger)
	}
	return s
}

func (s *Service) start(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	begin := time.Now()
	ctx, span := s.tracer.Start(ctx, "onboarding."+operation, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, string(dErrors.CodeOf(*errp)))
		}
		span.End()
		s.metrics.ObserveOperation(operation, begin)
	}
}

// execute runs a guarded mutation and translates store sentinels.
func (s *Service) execute(ctx context.Context, sessionID id.SessionID, validate func(*models.Session) error, mutate func(*models.Session)) (*models.Session, error) {
	sess, err := s.sessions.Execute(ctx, sessionID, validate, mutate)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return sess, nil
}

func translateStoreError(err error) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "session not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "session was modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "session store failure")
	}
}

// transition applies action to sess after CanApply validated it, and records
// the audit line and metric.
func (s *Service) transition(ctx context.Context, sess *models.Session, action models.Action, to models.Status, actor models.Actor, notes string, now time.Time) {
	from := sess.Status
	sess.ApplyTransition(action, to, actor, notes, now)
	s.metrics.IncTransition(string(action), string(to))
	s.logAudit(ctx, "session_transition",
		"session_id", sess.ID,
		"organization_id", sess.OrganizationID,
		"action", action,
		"from", from,
		"to", to,
		"actor_role", actor.Role,
		"actor_id", actor.ID,
	)
}

func (s *Service) notify(ctx context.Context, sess *models.Session, kind notify.Kind, to notify.Recipient, payload map[string]string) {
	if s.notifier == nil {
		return
	}
	to.OrganizationID = sess.OrganizationID.String()
	n := notify.Notification{
		Recipient: to,
		Kind:      kind,
		SessionID: sess.ID.String(),
		Payload:   payload,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := s.notifier.Notify(ctx, n); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "notification not queued",
			"error", err,
			"kind", kind,
			"session_id", sess.ID,
		)
	}
}

func applicant(sess *models.Session) notify.Recipient {
	return notify.Recipient{
		Role:  notify.RoleApplicant,
		Email: sess.Candidate.Email,
		Name:  sess.Candidate.FirstName + " " + sess.Candidate.LastName,
	}
}

func manager(sess *models.Session) notify.Recipient {
	return notify.Recipient{Role: notify.RoleManager, UserID: sess.ManagerID.String()}
}

func hrMailbox() notify.Recipient {
	return notify.Recipient{Role: notify.RoleHR}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	s.auditor.Record(ctx, event, attributes...)
}
