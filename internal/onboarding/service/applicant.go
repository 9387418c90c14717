package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gramv/onboardingsoftware-sub000/internal/documents"
	"github.com/gramv/onboardingsoftware-sub000/internal/notify"
	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/models"
	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/steps"
	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/token"
	"github.com/gramv/onboardingsoftware-sub000/internal/platform/device"
	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/sentinel"
	"github.com/gramv/onboardingsoftware-sub000/pkg/requestcontext"
)

// GetByToken resolves an applicant credential to its session.
func (s *Service) GetByToken(ctx context.Context, raw string) (_ *models.Session, err error) {
	ctx, done := s.start(ctx, "get_by_token")
	defer done(&err)
	return s.resolve(ctx, raw)
}

// SubmitStep validates payload for step and merges it into the session.
// Completing the current step advances the cursor; resubmitting an earlier
// step only replaces that step's section.
func (s *Service) SubmitStep(ctx context.Context, raw string, key models.StepKey, payload json.RawMessage) (_ *models.Session, err error) {
	ctx, done := s.start(ctx, "submit_step", attribute.String("step", string(key)))
	defer done(&err)

	sess, err := s.resolve(ctx, raw)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	sc := steps.StageContext{Now: now, ClientIP: requestcontext.ClientIP(ctx)}

	var mutation steps.Mutation
	updated, err := s.execute(ctx, sess.ID, func(cur *models.Session) error {
		if err := checkNavigable(cur, key, now); err != nil {
			return err
		}
		m, err := steps.Stage(cur, key, payload, sc)
		if err != nil {
			return err
		}
		mutation = m
		return nil
	}, func(cur *models.Session) {
		mutation(cur)
		s.startIfPending(ctx, cur, now)
		if cur.CurrentStep == key {
			cur.CurrentStep = steps.NextIncomplete(cur, key)
		}
		cur.UpdatedAt = now
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeStepValidationFailed) {
			s.metrics.IncStepFailure(string(key))
		}
		return nil, err
	}
	return updated, nil
}

// SkipStep completes an optional step without data.
func (s *Service) SkipStep(ctx context.Context, raw string, key models.StepKey) (_ *models.Session, err error) {
	ctx, done := s.start(ctx, "skip_step", attribute.String("step", string(key)))
	defer done(&err)

	sess, err := s.resolve(ctx, raw)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	var mutation steps.Mutation
	return s.execute(ctx, sess.ID, func(cur *models.Session) error {
		if err := checkNavigable(cur, key, now); err != nil {
			return err
		}
		m, err := steps.Skip(key, now)
		if err != nil {
			return err
		}
		mutation = m
		return nil
	}, func(cur *models.Session) {
		mutation(cur)
		s.startIfPending(ctx, cur, now)
		if cur.CurrentStep == key {
			cur.CurrentStep = steps.NextIncomplete(cur, key)
		}
		cur.UpdatedAt = now
	})
}

// JumpToStep moves the cursor to key when every earlier step is complete.
func (s *Service) JumpToStep(ctx context.Context, raw string, key models.StepKey) (_ *models.Session, err error) {
	ctx, done := s.start(ctx, "jump_to_step", attribute.String("step", string(key)))
	defer done(&err)

	sess, err := s.resolve(ctx, raw)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	return s.execute(ctx, sess.ID, func(cur *models.Session) error {
		return checkNavigable(cur, key, now)
	}, func(cur *models.Session) {
		cur.CurrentStep = key
		cur.UpdatedAt = now
	})
}

// AttachDocument stores an uploaded file and appends its descriptor to the
// session. The stored object is removed again when the session rejects it.
func (s *Service) AttachDocument(ctx context.Context, raw string, upload documents.Upload) (_ models.Document, err error) {
	ctx, done := s.start(ctx, "attach_document", attribute.String("document_type", string(upload.Type)))
	defer done(&err)

	sess, err := s.resolve(ctx, raw)
	if err != nil {
		return models.Document{}, err
	}
	now := requestcontext.Now(ctx)
	if err := checkEditable(sess, now); err != nil {
		return models.Document{}, err
	}

	doc, err := s.documents.Store(ctx, sess.ID, upload, now)
	if err != nil {
		var de *dErrors.Error
		if errors.As(err, &de) {
			return models.Document{}, err
		}
		return models.Document{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store document")
	}

	_, err = s.execute(ctx, sess.ID, func(cur *models.Session) error {
		return checkEditable(cur, now)
	}, func(cur *models.Session) {
		cur.Documents = append(cur.Documents, doc)
		s.startIfPending(ctx, cur, now)
		cur.UpdatedAt = now
	})
	if err != nil {
		if delErr := s.documents.Delete(ctx, doc.StorageKey); delErr != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "orphaned document not removed", "error", delErr, "storage_key", doc.StorageKey)
		}
		return models.Document{}, err
	}
	s.logAudit(ctx, "document_attached",
		"session_id", sess.ID,
		"document_id", doc.ID,
		"document_type", doc.Type,
	)
	return doc, nil
}

// Submit hands a fully completed session to the manager. A session returned
// for changes goes back to submitted, never further.
func (s *Service) Submit(ctx context.Context, raw string) (_ *models.Session, err error) {
	ctx, done := s.start(ctx, "submit")
	defer done(&err)

	sess, err := s.resolve(ctx, raw)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	var (
		action models.Action
		to     models.Status
	)
	updated, err := s.execute(ctx, sess.ID, func(cur *models.Session) error {
		if cur.IsExpired(now) {
			return dErrors.New(dErrors.CodeTokenExpired, "session expired")
		}
		action = models.ActionSubmit
		if cur.Status == models.StatusRequiresChanges {
			action = models.ActionResubmit
		}
		next, err := cur.CanApply(action)
		if err != nil {
			return err
		}
		if missing := steps.Missing(cur); len(missing) > 0 {
			return dErrors.WithFields(dErrors.CodeStepValidationFailed, "onboarding is incomplete", missing)
		}
		to = next
		return nil
	}, func(cur *models.Session) {
		at := now
		cur.MarkStepCompleted(models.StepReview, false, now)
		cur.CurrentStep = models.StepReview
		cur.SubmittedAt = &at
		for _, er := range cur.EditRequests {
			er.ResolvedAt = &at
			cur.ResolvedEditRequests = append(cur.ResolvedEditRequests, er)
		}
		cur.EditRequests = nil
		cur.ChangesRequestedBy = ""
		s.transition(ctx, cur, action, to, applicantActor(cur), "", now)
	})
	if err != nil {
		return nil, err
	}

	kind := notify.KindNewHireAlert
	if action == models.ActionResubmit {
		kind = notify.KindResubmission
	}
	s.notify(ctx, updated, kind, manager(updated), map[string]string{
		"candidate": updated.Candidate.FirstName + " " + updated.Candidate.LastName,
		"position":  updated.Candidate.Position,
	})
	return updated, nil
}

// resolve maps a cleartext credential to its session. Unknown and expired
// credentials fail with distinct codes that the transport renders alike.
func (s *Service) resolve(ctx context.Context, raw string) (*models.Session, error) {
	if strings.TrimSpace(raw) == "" {
		s.metrics.IncTokenRejected("missing")
		return nil, dErrors.New(dErrors.CodeTokenInvalid, "access token is required")
	}
	hash := token.Hash(raw)
	sess, err := s.lookup(ctx, hash)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncTokenRejected("unknown")
			return nil, dErrors.New(dErrors.CodeTokenInvalid, "unknown access token")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}

	now := requestcontext.Now(ctx)
	if sess.IsComplete() {
		s.metrics.IncTokenRejected("completed")
		return nil, dErrors.New(dErrors.CodeTokenExpired, "onboarding already completed")
	}
	if sess.IsExpired(now) {
		if sess.Status.IsEditable() {
			s.expireLazily(ctx, sess, now)
		}
		s.metrics.IncTokenRejected("expired")
		return nil, dErrors.New(dErrors.CodeTokenExpired, "access token expired")
	}
	return sess, nil
}

func (s *Service) lookup(ctx context.Context, hash string) (*models.Session, error) {
	if s.index != nil {
		sessionID, ok, err := s.index.Lookup(ctx, hash)
		switch {
		case err != nil:
			if s.logger != nil {
				s.logger.WarnContext(ctx, "token index lookup failed", "error", err)
			}
		case ok:
			sess, err := s.sessions.FindByID(ctx, sessionID)
			if err == nil && sess.TokenHash == hash {
				return sess, nil
			}
		}
	}
	return s.sessions.FindByTokenHash(ctx, hash)
}

// expireLazily records the expiry of a session whose token ran out while it
// was still editable. Losing a race here is harmless.
func (s *Service) expireLazily(ctx context.Context, sess *models.Session, now time.Time) {
	_, err := s.sessions.Execute(ctx, sess.ID, func(cur *models.Session) error {
		_, err := cur.CanApply(models.ActionExpire)
		return err
	}, func(cur *models.Session) {
		s.transition(ctx, cur, models.ActionExpire, models.StatusExpired,
			models.Actor{ID: "system", Role: models.RoleSystem}, "access token expired", now)
	})
	if err != nil && s.logger != nil {
		s.logger.DebugContext(ctx, "lazy expiry skipped", "error", err, "session_id", sess.ID)
	}
	s.forgetToken(ctx, sess.TokenHash)
}

func (s *Service) startIfPending(ctx context.Context, cur *models.Session, now time.Time) {
	if cur.Status != models.StatusPending {
		return
	}
	to, err := cur.CanApply(models.ActionStart)
	if err != nil {
		return
	}
	if ua := requestcontext.UserAgent(ctx); ua != "" {
		cur.Device = device.ParseUserAgent(ua)
	}
	s.transition(ctx, cur, models.ActionStart, to, applicantActor(cur), "", now)
}

func checkEditable(sess *models.Session, now time.Time) error {
	if sess.IsExpired(now) {
		return dErrors.New(dErrors.CodeTokenExpired, "session expired")
	}
	if !sess.Status.IsEditable() {
		return dErrors.New(dErrors.CodeIllegalTransition, "session is "+string(sess.Status)+" and can no longer be edited")
	}
	return nil
}

func checkNavigable(sess *models.Session, key models.StepKey, now time.Time) error {
	if err := checkEditable(sess, now); err != nil {
		return err
	}
	if !steps.IsKnown(key) {
		return dErrors.New(dErrors.CodeBadRequest, "unknown step "+string(key))
	}
	if !steps.CanJump(sess, key) {
		return dErrors.New(dErrors.CodeIllegalTransition, "earlier steps must be completed before "+string(key))
	}
	return nil
}

func applicantActor(sess *models.Session) models.Actor {
	return models.Actor{ID: sess.Candidate.Email, Role: models.RoleApplicant}
}
