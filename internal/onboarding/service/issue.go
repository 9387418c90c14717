package service

import (
	"context"
	"errors"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gramv/onboardingsoftware-sub000/internal/notify"
	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/models"
	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/steps"
	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/sentinel"
	"github.com/gramv/onboardingsoftware-sub000/pkg/requestcontext"
)

// maxIssueAttempts bounds retries when a freshly drawn access code collides
// with a live one.
const maxIssueAttempts = 5

// IssueResult carries the new session and its cleartext credential. The
// credential is never stored and cannot be recovered later.
type IssueResult struct {
	Session *models.Session
	Token   string
}

// IssueSession opens an onboarding session for a candidate. A candidate keeps
// at most one live session per organization: an editable session is expired
// first, a session already under review blocks issuance.
func (s *Service) IssueSession(ctx context.Context, req models.IssueRequest) (_ *IssueResult, err error) {
	ctx, done := s.start(ctx, "issue_session", attribute.String("organization_id", req.OrganizationID.String()))
	defer done(&err)

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	kind, _ := req.Delivery.TokenKind()
	now := requestcontext.Now(ctx)
	issuer := actorFromContext(ctx)

	var (
		result  *IssueResult
		retired []*models.Session
	)
	err = s.runInTx(ctx, func(ctx context.Context) error {
		release, err := s.sessions.LockCandidate(ctx, req.OrganizationID, req.Candidate.Email)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock candidate")
		}
		defer release()

		retired, err = s.retireLiveSessions(ctx, req, issuer, now)
		if err != nil {
			return err
		}
		result, err = s.createSession(ctx, req, kind, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, old := range retired {
		s.forgetToken(ctx, old.TokenHash)
	}
	if s.index != nil {
		if err := s.index.Put(ctx, result.Session.TokenHash, result.Session.ID, result.Session.ExpiresAt); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "token index put failed", "error", err, "session_id", result.Session.ID)
		}
	}

	s.metrics.IncSessionIssued(string(kind))
	s.logAudit(ctx, "session_issued",
		"session_id", result.Session.ID,
		"organization_id", result.Session.OrganizationID,
		"token_kind", kind,
		"expires_at", result.Session.ExpiresAt,
		"issued_by", issuer.ID,
	)
	s.notify(ctx, result.Session, notify.KindAccessCodeDelivery, applicant(result.Session), s.deliveryPayload(result))
	return result, nil
}

func (s *Service) retireLiveSessions(ctx context.Context, req models.IssueRequest, actor models.Actor, now time.Time) ([]*models.Session, error) {
	existing, err := s.sessions.ListByCandidate(ctx, req.OrganizationID, req.Candidate.Email)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load candidate sessions")
	}

	var retired []*models.Session
	for _, sess := range existing {
		if sess.Status.IsUnderReview() {
			return nil, dErrors.New(dErrors.CodeConflict, "candidate already has a session under review")
		}
		// Sessions past their expiry still hold the live slot until marked.
		if !sess.Status.IsEditable() {
			continue
		}
		expired, err := s.execute(ctx, sess.ID, func(cur *models.Session) error {
			_, err := cur.CanApply(models.ActionExpire)
			return err
		}, func(cur *models.Session) {
			s.transition(ctx, cur, models.ActionExpire, models.StatusExpired, actor, "superseded by a new session", now)
		})
		if err != nil {
			return nil, err
		}
		retired = append(retired, expired)
	}
	return retired, nil
}

func (s *Service) createSession(ctx context.Context, req models.IssueRequest, kind models.TokenKind, now time.Time) (*IssueResult, error) {
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		cred, err := s.issuer.Issue(kind, now)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue credential")
		}
		if _, err := s.sessions.FindByTokenHash(ctx, cred.Hash); err == nil {
			continue
		}
		sess, err := models.NewSession(id.NewSessionID(), req.OrganizationID, req.Candidate, req.ManagerID,
			cred.Kind, cred.Hash, cred.ExpiresAt, steps.First(), now)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
		}
		sess.ApplicationID = req.ApplicationID
		if req.Offer != nil {
			offer := *req.Offer
			sess.Offer = &offer
		}

		err = s.sessions.Create(ctx, sess)
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			continue
		}
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "candidate already has a live session")
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create session")
		}
		return &IssueResult{Session: sess, Token: cred.Token}, nil
	}
	return nil, dErrors.New(dErrors.CodeInternal, "could not allocate a unique access token")
}

func (s *Service) deliveryPayload(res *IssueResult) map[string]string {
	payload := map[string]string{
		"tokenKind": string(res.Session.TokenKind),
		"expiresAt": res.Session.ExpiresAt.Format(time.RFC3339),
		"position":  res.Session.Candidate.Position,
	}
	if res.Session.TokenKind == models.TokenKindAccessCode {
		payload["accessCode"] = res.Token
		return payload
	}
	link := res.Token
	if s.portalBaseURL != "" {
		link = s.portalBaseURL + "?token=" + url.QueryEscape(res.Token)
	}
	payload["link"] = link
	return payload
}

func (s *Service) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.RunInTx(ctx, fn)
}

func (s *Service) forgetToken(ctx context.Context, tokenHash string) {
	if s.index == nil {
		return
	}
	if err := s.index.Delete(ctx, tokenHash); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "token index delete failed", "error", err)
	}
}

// actorFromContext identifies the reviewer behind a request, falling back to
// the system actor for background callers.
func actorFromContext(ctx context.Context) models.Actor {
	reviewer := requestcontext.Reviewer(ctx)
	if reviewer.UserID.IsNil() {
		return models.Actor{ID: "system", Role: models.RoleSystem}
	}
	return models.Actor{ID: reviewer.UserID.String(), Role: models.Role(reviewer.Role)}
}
