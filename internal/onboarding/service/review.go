package service

import (
	"context"
	"errors"
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

const defaultListLimit = 100

// Review applies a manager or HR decision. The reviewer's role selects the
// action and the transition table decides whether it is legal. An HR
// approval materializes the employee and completes the session.
func (s *Service) Review(ctx context.Context, sessionID id.SessionID, req models.ReviewRequest) (_ *models.Session, err error) {
	ctx, done := s.start(ctx, "review",
		attribute.String("session_id", sessionID.String()),
		attribute.String("decision", string(req.Decision)))
	defer done(&err)

	reviewer, err := requireReviewer(ctx)
	if err != nil {
		return nil, err
	}
	req.Normalize()
	action, ok := models.ActionFor(models.Role(reviewer.Role), req.Decision)
	if !ok {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unsupported decision "+string(req.Decision))
	}
	if err := validateReview(req); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	actor := models.Actor{ID: reviewer.UserID.String(), Role: models.Role(reviewer.Role)}
	var to models.Status
	updated, err := s.execute(ctx, sessionID, func(cur *models.Session) error {
		if cur.OrganizationID != reviewer.OrganizationID {
			return dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		next, err := cur.CanApply(action)
		if err != nil {
			return err
		}
		if req.Decision == models.DecisionApprove && len(cur.EditRequests) > 0 {
			return dErrors.New(dErrors.CodeValidation, "session has unresolved edit requests")
		}
		to = next
		return nil
	}, func(cur *models.Session) {
		at := now
		reviewedBy := reviewer.UserID
		cur.ReviewedAt = &at
		cur.ReviewedBy = &reviewedBy
		cur.ReviewNotes = req.Notes
		if req.Decision == models.DecisionRequestChanges {
			requestChanges(cur, req.EditRequests, reviewer.UserID, actor.Role, now)
		}
		s.transition(ctx, cur, action, to, actor, req.Notes, now)
	})
	if err != nil {
		return nil, err
	}

	s.notifyDecision(ctx, updated, req)
	if action == models.ActionHRApprove {
		return s.materialize(ctx, updated)
	}
	return updated, nil
}

// RetryMaterialization re-runs materialization for a session left in
// approved by an earlier failure.
func (s *Service) RetryMaterialization(ctx context.Context, sessionID id.SessionID) (_ *models.Session, err error) {
	ctx, done := s.start(ctx, "retry_materialization", attribute.String("session_id", sessionID.String()))
	defer done(&err)

	reviewer, err := requireReviewer(ctx)
	if err != nil {
		return nil, err
	}
	if reviewer.Role != requestcontext.RoleHR {
		return nil, dErrors.New(dErrors.CodeForbidden, "only HR can retry materialization")
	}
	sess, err := s.get(ctx, reviewer.OrganizationID, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := sess.CanApply(models.ActionComplete); err != nil {
		return nil, err
	}
	return s.materialize(ctx, sess)
}

// Invalidate expires a session that has not reached review.
func (s *Service) Invalidate(ctx context.Context, sessionID id.SessionID) (_ *models.Session, err error) {
	ctx, done := s.start(ctx, "invalidate", attribute.String("session_id", sessionID.String()))
	defer done(&err)

	reviewer, err := requireReviewer(ctx)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	actor := models.Actor{ID: reviewer.UserID.String(), Role: models.Role(reviewer.Role)}
	updated, err := s.execute(ctx, sessionID, func(cur *models.Session) error {
		if cur.OrganizationID != reviewer.OrganizationID {
			return dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		if !cur.Status.IsEditable() {
			return dErrors.New(dErrors.CodeIllegalTransition, "only sessions that have not been submitted can be invalidated")
		}
		_, err := cur.CanApply(models.ActionExpire)
		return err
	}, func(cur *models.Session) {
		s.transition(ctx, cur, models.ActionExpire, models.StatusExpired, actor, "invalidated by reviewer", now)
	})
	if err != nil {
		return nil, err
	}
	s.forgetToken(ctx, updated.TokenHash)
	return updated, nil
}

// List returns the reviewer organization's sessions, newest first.
func (s *Service) List(ctx context.Context, filter models.ListFilter) (_ []*models.Session, err error) {
	ctx, done := s.start(ctx, "list")
	defer done(&err)

	reviewer, err := requireReviewer(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range filter.Statuses {
		if !st.IsValid() {
			return nil, dErrors.New(dErrors.CodeBadRequest, "unknown status "+string(st))
		}
	}
	if filter.Limit <= 0 || filter.Limit > defaultListLimit {
		filter.Limit = defaultListLimit
	}
	sessions, err := s.sessions.ListByOrganization(ctx, reviewer.OrganizationID, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sessions")
	}
	return sessions, nil
}

// Get returns one session of the reviewer organization.
func (s *Service) Get(ctx context.Context, sessionID id.SessionID) (_ *models.Session, err error) {
	ctx, done := s.start(ctx, "get", attribute.String("session_id", sessionID.String()))
	defer done(&err)

	reviewer, err := requireReviewer(ctx)
	if err != nil {
		return nil, err
	}
	return s.get(ctx, reviewer.OrganizationID, sessionID)
}

// DocumentURL returns a short-lived download link for an attached document.
func (s *Service) DocumentURL(ctx context.Context, sessionID id.SessionID, documentID id.DocumentID) (_ string, err error) {
	ctx, done := s.start(ctx, "document_url", attribute.String("session_id", sessionID.String()))
	defer done(&err)

	reviewer, err := requireReviewer(ctx)
	if err != nil {
		return "", err
	}
	sess, err := s.get(ctx, reviewer.OrganizationID, sessionID)
	if err != nil {
		return "", err
	}
	for _, doc := range sess.Documents {
		if doc.ID != documentID {
			continue
		}
		link, err := s.documents.URL(ctx, doc.StorageKey, s.documentURLTTL)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return "", dErrors.New(dErrors.CodeNotFound, "document not found")
			}
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign document url")
		}
		s.logAudit(ctx, "document_viewed",
			"session_id", sess.ID,
			"document_id", doc.ID,
			"reviewer_id", reviewer.UserID,
		)
		return link, nil
	}
	return "", dErrors.New(dErrors.CodeNotFound, "document not found")
}

func (s *Service) get(ctx context.Context, orgID id.OrganizationID, sessionID id.SessionID) (*models.Session, error) {
	sess, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, translateStoreError(err)
	}
	if sess.OrganizationID != orgID {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	return sess, nil
}

// materialize creates the employee outside the session lock and then
// completes the session. When either step fails the session stays approved
// and HR is alerted so the step can be retried.
func (s *Service) materialize(ctx context.Context, sess *models.Session) (*models.Session, error) {
	rec, err := s.materializer.Materialize(ctx, sess)
	if err != nil {
		return nil, s.materializationFailed(ctx, sess, err)
	}

	now := requestcontext.Now(ctx)
	system := models.Actor{ID: "system", Role: models.RoleSystem}
	completed, err := s.execute(ctx, sess.ID, func(cur *models.Session) error {
		_, err := cur.CanApply(models.ActionComplete)
		return err
	}, func(cur *models.Session) {
		at := now
		employeeID := rec.ID
		cur.EmployeeID = &employeeID
		cur.CompletedAt = &at
		s.transition(ctx, cur, models.ActionComplete, models.StatusCompleted, system, "", now)
	})
	if dErrors.HasCode(err, dErrors.CodeConflict) {
		// another retry completed the session first
		return nil, err
	}
	if err != nil {
		return nil, s.materializationFailed(ctx, sess, err)
	}
	s.metrics.IncMaterialization("succeeded")
	s.forgetToken(ctx, completed.TokenHash)

	payload := map[string]string{
		"stage":          "final",
		"employeeNumber": rec.EmployeeNumber,
	}
	if rec.ActivationCode != "" {
		payload["activationCode"] = rec.ActivationCode
	}
	if completed.Offer != nil {
		payload["startDate"] = completed.Offer.StartDate
		payload["startTime"] = completed.Offer.StartTime
	}
	s.notify(ctx, completed, notify.KindApproval, applicant(completed), payload)
	return completed, nil
}

func (s *Service) materializationFailed(ctx context.Context, sess *models.Session, err error) error {
	s.metrics.IncMaterialization("failed")
	if s.logger != nil {
		s.logger.ErrorContext(ctx, "employee materialization failed",
			"error", err,
			"session_id", sess.ID,
			"organization_id", sess.OrganizationID,
		)
	}
	s.notify(ctx, sess, notify.KindMaterializationFailure, hrMailbox(), map[string]string{
		"candidate": sess.Candidate.FirstName + " " + sess.Candidate.LastName,
		"reason":    err.Error(),
	})
	if dErrors.HasCode(err, dErrors.CodeMaterializationFailed) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeMaterializationFailed, "employee record could not be created")
}

func (s *Service) notifyDecision(ctx context.Context, sess *models.Session, req models.ReviewRequest) {
	switch req.Decision {
	case models.DecisionReject:
		s.notify(ctx, sess, notify.KindRejection, applicant(sess), map[string]string{"notes": req.Notes})
	case models.DecisionRequestChanges:
		s.notify(ctx, sess, notify.KindEditRequest, applicant(sess), map[string]string{
			"notes":       req.Notes,
			"currentStep": string(sess.CurrentStep),
		})
	case models.DecisionApprove:
		if sess.Status == models.StatusManagerApproved {
			s.notify(ctx, sess, notify.KindApproval, applicant(sess), map[string]string{"stage": "manager"})
			s.notify(ctx, sess, notify.KindNewHireAlert, hrMailbox(), map[string]string{
				"candidate": sess.Candidate.FirstName + " " + sess.Candidate.LastName,
				"position":  sess.Candidate.Position,
			})
		}
	}
}

// requestChanges opens edit requests, reopens the flagged steps and review,
// and points the applicant at the earliest flagged step. The session
// restarts at the manager stage regardless of who asked for the change.
func requestChanges(cur *models.Session, inputs []models.EditRequestInput, reviewerID id.UserID, role models.Role, now time.Time) {
	flagged := map[models.StepKey]bool{}
	cur.EditRequests = make([]models.EditRequest, 0, len(inputs))
	for _, in := range inputs {
		cur.EditRequests = append(cur.EditRequests, models.EditRequest{
			ID:              id.NewEditRequestID(),
			Section:         in.Section,
			Field:           in.Field,
			CurrentValue:    in.CurrentValue,
			RequestedChange: in.RequestedChange,
			Reason:          in.Reason,
			RequestedBy:     reviewerID,
			RequestedRole:   role,
			CreatedAt:       now,
		})
		flagged[in.Section] = true
	}
	for _, d := range steps.All() {
		if flagged[d.Key] {
			cur.ResetStep(d.Key)
			cur.CurrentStep = d.Key
			break
		}
	}
	for key := range flagged {
		cur.ResetStep(key)
	}
	cur.ResetStep(models.StepReview)
	cur.ChangesRequestedBy = role
}

func validateReview(req models.ReviewRequest) error {
	switch req.Decision {
	case models.DecisionApprove:
		if len(req.EditRequests) > 0 {
			return dErrors.New(dErrors.CodeValidation, "approval cannot carry edit requests")
		}
		return nil
	case models.DecisionReject:
		if req.Notes == "" {
			return dErrors.New(dErrors.CodeReviewerNotesRequired, "a rejection requires notes")
		}
		return nil
	}

	if req.Notes == "" {
		return dErrors.New(dErrors.CodeReviewerNotesRequired, "a change request requires notes")
	}
	if len(req.EditRequests) == 0 {
		return dErrors.New(dErrors.CodeValidation, "a change request needs at least one edit request")
	}
	for _, er := range req.EditRequests {
		if er.Reason == "" {
			return dErrors.New(dErrors.CodeReviewerNotesRequired, "every edit request requires a reason")
		}
		if !steps.IsEditable(er.Section) {
			return dErrors.New(dErrors.CodeValidation, "edit request names unknown section "+string(er.Section))
		}
	}
	return nil
}

func requireReviewer(ctx context.Context) (requestcontext.ReviewerIdentity, error) {
	reviewer := requestcontext.Reviewer(ctx)
	if reviewer.UserID.IsNil() || reviewer.OrganizationID.IsNil() || !reviewer.Role.IsValid() {
		return requestcontext.ReviewerIdentity{}, dErrors.New(dErrors.CodeUnauthorized, "reviewer authentication required")
	}
	return reviewer, nil
}
