package service_test

//go:generate mockgen -source=service.go -destination=mocks/service_mocks.go -package=mocks Materializer TokenIndex

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/gramv/onboardingsoftware-sub000/internal/documents"
	employee "github.com/gramv/onboardingsoftware-sub000/internal/employee/models"
	employeesvc "github.com/gramv/onboardingsoftware-sub000/internal/employee/service"
	employeestore "github.com/gramv/onboardingsoftware-sub000/internal/employee/store"
	"github.com/gramv/onboardingsoftware-sub000/internal/notify"
	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/models"
	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/service"
	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/service/mocks"
	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/steps"
	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/store/session"
	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/token"
	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
	"github.com/gramv/onboardingsoftware-sub000/pkg/requestcontext"
)

const (
	personalPayload = `{"firstName":"Ana","lastName":"Lopez","email":"ana@example.com","phone":"555-201-3344",
		"address":{"street":"12 Palm Ave","city":"Miami","state":"FL","zip":"33101"}}`
	chromeUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

type ServiceSuite struct {
	suite.Suite
	ctrl         *gomock.Controller
	store        *session.InMemoryStore
	storage      *documents.InMemoryStorage
	relay        *notify.InMemoryRelay
	materializer *mocks.MockMaterializer
	svc          *service.Service

	t0        time.Time
	orgID     id.OrganizationID
	managerID id.UserID
	hrID      id.UserID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = session.NewInMemoryStore()
	s.storage = documents.NewInMemoryStorage()
	s.relay = notify.NewInMemoryRelay()
	s.materializer = mocks.NewMockMaterializer(s.ctrl)
	s.svc = service.New(s.store,
		token.NewIssuer(token.Policy{RemoteTTL: 72 * time.Hour, WalkInTTL: 120 * time.Hour}),
		s.materializer, s.storage,
		service.WithNotifier(s.relay),
		service.WithPortalBaseURL("https://portal.example.com/onboard"),
	)
	s.t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s.orgID = id.NewOrganizationID()
	s.managerID = id.NewUserID()
	s.hrID = id.NewUserID()
}

func (s *ServiceSuite) at(offset time.Duration) context.Context {
	ctx := requestcontext.WithTime(context.Background(), s.t0.Add(offset))
	return requestcontext.WithClientMetadata(ctx, "10.1.1.7", chromeUA)
}

func (s *ServiceSuite) asManager(offset time.Duration) context.Context {
	return requestcontext.WithReviewer(s.at(offset), requestcontext.ReviewerIdentity{
		UserID: s.managerID, OrganizationID: s.orgID, Role: requestcontext.RoleManager,
	})
}

func (s *ServiceSuite) asHR(offset time.Duration) context.Context {
	return requestcontext.WithReviewer(s.at(offset), requestcontext.ReviewerIdentity{
		UserID: s.hrID, OrganizationID: s.orgID, Role: requestcontext.RoleHR,
	})
}

func (s *ServiceSuite) issue(delivery models.Delivery) *service.IssueResult {
	res, err := s.svc.IssueSession(s.asManager(0), models.IssueRequest{
		OrganizationID: s.orgID,
		ManagerID:      s.managerID,
		Candidate: models.Candidate{
			FirstName: "Ana", LastName: "Lopez", Email: "Ana@Example.com",
			Position: "Front Desk Agent", Department: "Front Office",
		},
		Offer:    &models.Offer{PayRate: 16.5, StartDate: "2025-04-01", StartTime: "08:00", SupervisorID: s.managerID},
		Delivery: delivery,
	})
	s.Require().NoError(err)
	return res
}

func signaturePayload(t *testing.T) string {
	img := image.NewGray(image.Rect(0, 0, 120, 40))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	data := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
	b, _ := json.Marshal(map[string]string{"signatureData": data, "signerName": "Ana Lopez"})
	return string(b)
}

func (s *ServiceSuite) step(tok string, key models.StepKey, payload string) *models.Session {
	sess, err := s.svc.SubmitStep(s.at(time.Minute), tok, key, json.RawMessage(payload))
	s.Require().NoError(err, "step %s", key)
	return sess
}

func (s *ServiceSuite) completeSteps(tok string) {
	s.step(tok, models.StepLanguage, `{"code":"es"}`)
	s.step(tok, models.StepVerify, `{"dateOfBirth":"1995-06-15","ssnLastFour":"1234"}`)
	s.step(tok, models.StepPersonal, personalPayload)
	s.step(tok, models.StepEmergencyContact, `{"name":"Luis Lopez","relationship":"brother","phone":"555-201-9999"}`)
	_, err := s.svc.AttachDocument(s.at(time.Minute), tok, documents.Upload{
		Type: models.DocUSPassport, Filename: "passport.pdf", ContentType: "application/pdf",
		Data: []byte("%PDF-1.4\n1 0 obj\n"),
	})
	s.Require().NoError(err)
	s.step(tok, models.StepDocuments, `{}`)
	s.step(tok, models.StepI9, `{"citizenshipStatus":"citizen","attestation":true}`)
	s.step(tok, models.StepW4, `{"filingStatus":"single"}`)
	s.step(tok, models.StepHandbook, `{"acknowledged":true,"version":"2025.1"}`)
	s.step(tok, models.StepSignature, signaturePayload(s.T()))
}

func (s *ServiceSuite) submitted() *service.IssueResult {
	res := s.issue(models.DeliveryWalkIn)
	s.completeSteps(res.Token)
	sess, err := s.svc.Submit(s.at(2*time.Minute), res.Token)
	s.Require().NoError(err)
	s.Require().Equal(models.StatusSubmitted, sess.Status)
	return res
}

func (s *ServiceSuite) managerApproved() *service.IssueResult {
	res := s.submitted()
	sess, err := s.svc.Review(s.asManager(time.Hour), res.Session.ID, models.ReviewRequest{Decision: models.DecisionApprove})
	s.Require().NoError(err)
	s.Require().Equal(models.StatusManagerApproved, sess.Status)
	return res
}

func (s *ServiceSuite) record() *employee.Record {
	return &employee.Record{ID: id.NewEmployeeID(), EmployeeNumber: "EMP-0A1B2C3D", ActivationCode: "ABCDEFGH23"}
}

func (s *ServiceSuite) TestIssueSession() {
	s.Run("walk-in gets an access code", func() {
		res := s.issue(models.DeliveryWalkIn)

		s.Len(res.Token, token.AccessCodeLength)
		s.Equal(models.StatusPending, res.Session.Status)
		s.Equal(models.StepLanguage, res.Session.CurrentStep)
		s.Equal(s.t0.Add(120*time.Hour), res.Session.ExpiresAt)
		s.Equal("ana@example.com", res.Session.Candidate.Email)
		s.NotEqual(res.Token, res.Session.TokenHash)

		sent := s.relay.OfKind(notify.KindAccessCodeDelivery)
		s.Require().NotEmpty(sent)
		s.Equal(res.Token, sent[len(sent)-1].Payload["accessCode"])
	})

	s.Run("remote candidate gets a link", func() {
		s.SetupTest()
		res := s.issue(models.DeliveryRemote)

		s.Equal(models.TokenKindBearer, res.Session.TokenKind)
		s.Equal(s.t0.Add(72*time.Hour), res.Session.ExpiresAt)
		sent := s.relay.OfKind(notify.KindAccessCodeDelivery)
		s.Require().Len(sent, 1)
		s.Contains(sent[0].Payload["link"], "https://portal.example.com/onboard?token=")
	})

	s.Run("invalid request is rejected", func() {
		_, err := s.svc.IssueSession(s.asManager(0), models.IssueRequest{OrganizationID: s.orgID, ManagerID: s.managerID})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestIssueReplacesLiveSession() {
	first := s.issue(models.DeliveryWalkIn)
	s.step(first.Token, models.StepLanguage, `{"code":"en"}`)

	second := s.issue(models.DeliveryRemote)

	_, err := s.svc.GetByToken(s.at(time.Minute), first.Token)
	s.True(dErrors.HasCode(err, dErrors.CodeTokenExpired))
	old, err := s.store.FindByID(context.Background(), first.Session.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, old.Status)

	current, err := s.svc.GetByToken(s.at(time.Minute), second.Token)
	s.Require().NoError(err)
	s.Equal(second.Session.ID, current.ID)
}

// slowCandidateStore widens the window between listing a candidate's
// sessions and creating the new one.
type slowCandidateStore struct {
	*session.InMemoryStore
	delay time.Duration
}

func (s slowCandidateStore) ListByCandidate(ctx context.Context, orgID id.OrganizationID, email string) ([]*models.Session, error) {
	time.Sleep(s.delay)
	return s.InMemoryStore.ListByCandidate(ctx, orgID, email)
}

func (s *ServiceSuite) TestConcurrentIssueLeavesOneLiveSession() {
	s.svc = service.New(slowCandidateStore{InMemoryStore: s.store, delay: 20 * time.Millisecond},
		token.NewIssuer(token.Policy{RemoteTTL: 72 * time.Hour, WalkInTTL: 120 * time.Hour}),
		s.materializer, s.storage, service.WithNotifier(s.relay))

	const callers = 4
	errs := make(chan error, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.svc.IssueSession(s.asManager(0), models.IssueRequest{
				OrganizationID: s.orgID,
				ManagerID:      s.managerID,
				Candidate:      models.Candidate{FirstName: "Ana", LastName: "Lopez", Email: "ana@example.com", Position: "Houseperson"},
				Delivery:       models.DeliveryWalkIn,
			})
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	all, err := s.store.ListByCandidate(context.Background(), s.orgID, "ana@example.com")
	s.Require().NoError(err)
	s.Require().Len(all, callers)
	live := 0
	for _, sess := range all {
		if sess.Status.HoldsLiveSlot() {
			live++
		}
	}
	s.Equal(1, live)
}

func (s *ServiceSuite) TestIssueRetiresTimeExpiredSession() {
	first := s.issue(models.DeliveryRemote)

	_, err := s.svc.IssueSession(s.asManager(100*time.Hour), models.IssueRequest{
		OrganizationID: s.orgID,
		ManagerID:      s.managerID,
		Candidate:      models.Candidate{FirstName: "Ana", LastName: "Lopez", Email: "ana@example.com", Position: "Houseperson"},
		Delivery:       models.DeliveryWalkIn,
	})
	s.Require().NoError(err)

	old, err := s.store.FindByID(context.Background(), first.Session.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, old.Status)
}

func (s *ServiceSuite) TestIssueBlockedWhileUnderReview() {
	s.submitted()

	_, err := s.svc.IssueSession(s.asManager(time.Hour), models.IssueRequest{
		OrganizationID: s.orgID,
		ManagerID:      s.managerID,
		Candidate:      models.Candidate{FirstName: "Ana", LastName: "Lopez", Email: "ana@example.com", Position: "Front Desk Agent"},
		Delivery:       models.DeliveryRemote,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestTokenResolution() {
	res := s.issue(models.DeliveryRemote)

	s.Run("expired token after 73 hours", func() {
		_, err := s.svc.GetByToken(s.at(73*time.Hour), res.Token)
		s.True(dErrors.HasCode(err, dErrors.CodeTokenExpired))

		stored, err := s.store.FindByID(context.Background(), res.Session.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusExpired, stored.Status)
	})

	s.Run("expiry is monotonic", func() {
		_, err := s.svc.GetByToken(s.at(time.Minute), res.Token)
		s.True(dErrors.HasCode(err, dErrors.CodeTokenExpired))
	})

	s.Run("unknown and blank tokens are invalid", func() {
		_, err := s.svc.GetByToken(s.at(0), "ZZZZZZ")
		s.True(dErrors.HasCode(err, dErrors.CodeTokenInvalid))
		_, err = s.svc.GetByToken(s.at(0), "  ")
		s.True(dErrors.HasCode(err, dErrors.CodeTokenInvalid))
	})
}

func (s *ServiceSuite) TestAccessCodeIsNormalized() {
	res := s.issue(models.DeliveryWalkIn)
	typed := " " + res.Token[:3] + "-" + res.Token[3:] + " "

	sess, err := s.svc.GetByToken(s.at(0), typed)
	s.Require().NoError(err)
	s.Equal(res.Session.ID, sess.ID)
}

func (s *ServiceSuite) TestSubmitStep() {
	res := s.issue(models.DeliveryWalkIn)

	s.Run("first step starts the session and advances", func() {
		sess := s.step(res.Token, models.StepLanguage, `{"code":"es"}`)
		s.Equal(models.StatusInProgress, sess.Status)
		s.Equal(models.StepVerify, sess.CurrentStep)
		s.Contains(sess.Device, "Chrome")
		s.Require().Len(sess.History, 1)
		s.Equal(models.ActionStart, sess.History[0].Action)
	})

	s.Run("missing email fails and keeps the cursor", func() {
		s.step(res.Token, models.StepVerify, `{"dateOfBirth":"1995-06-15","ssnLastFour":"1234"}`)

		_, err := s.svc.SubmitStep(s.at(time.Minute), res.Token, models.StepPersonal,
			json.RawMessage(`{"firstName":"Ana","lastName":"Lopez","phone":"555-201-3344",
				"address":{"street":"12 Palm Ave","city":"Miami","state":"FL","zip":"33101"}}`))
		s.True(dErrors.HasCode(err, dErrors.CodeStepValidationFailed))
		s.Contains(dErrors.FieldsOf(err), "email")

		sess, err := s.svc.GetByToken(s.at(time.Minute), res.Token)
		s.Require().NoError(err)
		s.Equal(models.StepPersonal, sess.CurrentStep)
		s.Nil(sess.FormData.Personal)
	})

	s.Run("accepted data round-trips", func() {
		sess := s.step(res.Token, models.StepPersonal, personalPayload)

		var want models.PersonalInfo
		s.Require().NoError(json.Unmarshal([]byte(personalPayload), &want))
		s.Require().NotNil(sess.FormData.Personal)
		s.Equal(want, *sess.FormData.Personal)
		s.Equal(models.StepEmergencyContact, sess.CurrentStep)
	})

	s.Run("resubmitting an earlier step keeps the cursor", func() {
		sess := s.step(res.Token, models.StepLanguage, `{"code":"en"}`)
		s.Equal("en", sess.FormData.Language.Code)
		s.Equal(models.StepEmergencyContact, sess.CurrentStep)
	})

	s.Run("steps beyond the frontier are illegal", func() {
		_, err := s.svc.SubmitStep(s.at(time.Minute), res.Token, models.StepW4, json.RawMessage(`{"filingStatus":"single"}`))
		s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))
	})

	s.Run("review cannot be staged", func() {
		_, err := s.svc.SubmitStep(s.at(time.Minute), res.Token, models.StepReview, nil)
		s.Error(err)
	})
}

func (s *ServiceSuite) TestSkipAndJump() {
	res := s.issue(models.DeliveryWalkIn)

	sess, err := s.svc.SkipStep(s.at(time.Minute), res.Token, models.StepLanguage)
	s.Require().NoError(err)
	s.True(sess.Step(models.StepLanguage).Skipped)
	s.Equal(models.StepVerify, sess.CurrentStep)
	s.Equal(models.StatusInProgress, sess.Status)

	_, err = s.svc.SkipStep(s.at(time.Minute), res.Token, models.StepVerify)
	s.True(dErrors.HasCode(err, dErrors.CodeStepValidationFailed))

	_, err = s.svc.JumpToStep(s.at(time.Minute), res.Token, models.StepI9)
	s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))

	sess, err = s.svc.JumpToStep(s.at(time.Minute), res.Token, models.StepLanguage)
	s.Require().NoError(err)
	s.Equal(models.StepLanguage, sess.CurrentStep)
}

func (s *ServiceSuite) TestSubmit() {
	s.Run("incomplete sessions cannot be submitted", func() {
		res := s.issue(models.DeliveryWalkIn)
		s.step(res.Token, models.StepLanguage, `{"code":"es"}`)

		_, err := s.svc.Submit(s.at(time.Minute), res.Token)
		s.True(dErrors.HasCode(err, dErrors.CodeStepValidationFailed))
		s.Contains(dErrors.FieldsOf(err), string(models.StepPersonal))
	})

	s.Run("complete session is submitted and the manager notified", func() {
		s.SetupTest()
		res := s.submitted()

		sess, err := s.svc.GetByToken(s.at(3*time.Minute), res.Token)
		s.Require().NoError(err)
		s.NotNil(sess.SubmittedAt)
		s.Equal(models.StepReview, sess.CurrentStep)
		s.True(sess.IsStepCompleted(models.StepReview))

		alerts := s.relay.OfKind(notify.KindNewHireAlert)
		s.Require().Len(alerts, 1)
		s.Equal(s.managerID.String(), alerts[0].Recipient.UserID)

		_, err = s.svc.Submit(s.at(4*time.Minute), res.Token)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		_, err = s.svc.SubmitStep(s.at(4*time.Minute), res.Token, models.StepLanguage, json.RawMessage(`{"code":"en"}`))
		s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))
	})
}

func (s *ServiceSuite) TestApprovalPipelineMaterializesOnce() {
	res := s.managerApproved()
	rec := s.record()
	s.materializer.EXPECT().
		Materialize(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, sess *models.Session) (*employee.Record, error) {
			s.Equal(models.StatusApproved, sess.Status)
			return rec, nil
		}).
		Times(1)

	sess, err := s.svc.Review(s.asHR(2*time.Hour), res.Session.ID, models.ReviewRequest{Decision: models.DecisionApprove, Notes: "welcome"})
	s.Require().NoError(err)

	s.Equal(models.StatusCompleted, sess.Status)
	s.Require().NotNil(sess.EmployeeID)
	s.Equal(rec.ID, *sess.EmployeeID)
	s.NotNil(sess.CompletedAt)

	var path []models.Status
	for _, tr := range sess.History {
		path = append(path, tr.To)
	}
	s.Equal([]models.Status{
		models.StatusInProgress, models.StatusSubmitted, models.StatusManagerApproved,
		models.StatusApproved, models.StatusCompleted,
	}, path)

	approvals := s.relay.OfKind(notify.KindApproval)
	s.Require().NotEmpty(approvals)
	final := approvals[len(approvals)-1]
	s.Equal("final", final.Payload["stage"])
	s.Equal("ABCDEFGH23", final.Payload["activationCode"])

	_, err = s.svc.GetByToken(s.at(3*time.Hour), res.Token)
	s.True(dErrors.HasCode(err, dErrors.CodeTokenExpired))
}

func (s *ServiceSuite) TestHRCannotSkipManagerStage() {
	res := s.submitted()

	_, err := s.svc.Review(s.asHR(time.Hour), res.Session.ID, models.ReviewRequest{Decision: models.DecisionApprove})
	s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))

	sess, err := s.store.FindByID(context.Background(), res.Session.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusSubmitted, sess.Status)
}

func (s *ServiceSuite) TestDuplicateManagerApprovalConflicts() {
	res := s.managerApproved()

	_, err := s.svc.Review(s.asManager(2*time.Hour), res.Session.ID, models.ReviewRequest{Decision: models.DecisionApprove})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestConcurrentHRApprovals() {
	res := s.managerApproved()
	s.materializer.EXPECT().Materialize(gomock.Any(), gomock.Any()).Return(s.record(), nil).Times(1)

	errs := make(chan error, 2)
	start := make(chan struct{})
	for range 2 {
		go func() {
			<-start
			_, err := s.svc.Review(s.asHR(2*time.Hour), res.Session.ID, models.ReviewRequest{Decision: models.DecisionApprove})
			errs <- err
		}()
	}
	close(start)

	var succeeded, conflicted int
	for range 2 {
		err := <-errs
		switch {
		case err == nil:
			succeeded++
		case dErrors.HasCode(err, dErrors.CodeConflict):
			conflicted++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, succeeded)
	s.Equal(1, conflicted)
}

func (s *ServiceSuite) TestReviewValidation() {
	res := s.submitted()

	s.Run("edit request without reason", func() {
		_, err := s.svc.Review(s.asManager(time.Hour), res.Session.ID, models.ReviewRequest{
			Decision: models.DecisionRequestChanges,
			Notes:    "please fix",
			EditRequests: []models.EditRequestInput{
				{Section: models.StepPersonal, Field: "phone"},
			},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeReviewerNotesRequired))

		sess, err := s.store.FindByID(context.Background(), res.Session.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusSubmitted, sess.Status)
	})

	s.Run("reject without notes", func() {
		_, err := s.svc.Review(s.asManager(time.Hour), res.Session.ID, models.ReviewRequest{Decision: models.DecisionReject})
		s.True(dErrors.HasCode(err, dErrors.CodeReviewerNotesRequired))
	})

	s.Run("approve carrying edit requests", func() {
		_, err := s.svc.Review(s.asManager(time.Hour), res.Session.ID, models.ReviewRequest{
			Decision:     models.DecisionApprove,
			EditRequests: []models.EditRequestInput{{Section: models.StepPersonal, Reason: "typo"}},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown decision", func() {
		_, err := s.svc.Review(s.asManager(time.Hour), res.Session.ID, models.ReviewRequest{Decision: "escalate"})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("other organization sees nothing", func() {
		ctx := requestcontext.WithReviewer(s.at(time.Hour), requestcontext.ReviewerIdentity{
			UserID: id.NewUserID(), OrganizationID: id.NewOrganizationID(), Role: requestcontext.RoleManager,
		})
		_, err := s.svc.Review(ctx, res.Session.ID, models.ReviewRequest{Decision: models.DecisionApprove})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unauthenticated reviewer", func() {
		_, err := s.svc.Review(s.at(time.Hour), res.Session.ID, models.ReviewRequest{Decision: models.DecisionApprove})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestRequestChangesAndResubmit() {
	res := s.submitted()

	sess, err := s.svc.Review(s.asManager(time.Hour), res.Session.ID, models.ReviewRequest{
		Decision: models.DecisionRequestChanges,
		Notes:    "phone number looks wrong",
		EditRequests: []models.EditRequestInput{
			{Section: models.StepW4, Field: "filingStatus", Reason: "confirm filing status"},
			{Section: models.StepPersonal, Field: "phone", CurrentValue: "555-201-3344", Reason: "number is disconnected"},
		},
	})
	s.Require().NoError(err)
	s.Equal(models.StatusRequiresChanges, sess.Status)
	s.Equal(models.StepPersonal, sess.CurrentStep)
	s.False(sess.IsStepCompleted(models.StepPersonal))
	s.False(sess.IsStepCompleted(models.StepW4))
	s.False(sess.IsStepCompleted(models.StepReview))
	s.True(sess.IsStepCompleted(models.StepVerify))
	s.Len(sess.EditRequests, 2)
	s.Equal(models.RoleManager, sess.ChangesRequestedBy)
	s.Len(s.relay.OfKind(notify.KindEditRequest), 1)

	_, err = s.svc.Submit(s.at(2*time.Hour), res.Token)
	s.True(dErrors.HasCode(err, dErrors.CodeStepValidationFailed))

	fixed := s.step(res.Token, models.StepPersonal, personalPayload)
	s.Equal(models.StepW4, fixed.CurrentStep)
	s.step(res.Token, models.StepW4, `{"filingStatus":"married_joint"}`)

	sess, err = s.svc.Submit(s.at(3*time.Hour), res.Token)
	s.Require().NoError(err)
	s.Equal(models.StatusSubmitted, sess.Status)
	s.Empty(sess.EditRequests)
	s.Len(sess.ResolvedEditRequests, 2)
	s.NotNil(sess.ResolvedEditRequests[0].ResolvedAt)
	s.Empty(sess.ChangesRequestedBy)
	s.Len(s.relay.OfKind(notify.KindResubmission), 1)
}

func (s *ServiceSuite) TestProgressIsFullExactlyWhenSubmittedOrLater() {
	check := func(sess *models.Session) {
		s.Equal(sess.Status.IsSubmittedOrLater(), steps.Progress(sess) == 100,
			"status %s with progress %d", sess.Status, steps.Progress(sess))
	}

	res := s.issue(models.DeliveryWalkIn)
	check(res.Session)
	s.completeSteps(res.Token)
	sess, err := s.svc.GetByToken(s.at(2*time.Minute), res.Token)
	s.Require().NoError(err)
	check(sess)
	s.Less(steps.Progress(sess), 100)

	sess, err = s.svc.Submit(s.at(2*time.Minute), res.Token)
	s.Require().NoError(err)
	check(sess)
	s.Equal(100, steps.Progress(sess))

	sess, err = s.svc.Review(s.asManager(time.Hour), res.Session.ID, models.ReviewRequest{
		Decision: models.DecisionRequestChanges,
		Notes:    "phone number looks wrong",
		EditRequests: []models.EditRequestInput{
			{Section: models.StepPersonal, Field: "phone", Reason: "number is disconnected"},
		},
	})
	s.Require().NoError(err)
	check(sess)

	s.step(res.Token, models.StepPersonal, personalPayload)
	sess, err = s.svc.Submit(s.at(3*time.Hour), res.Token)
	s.Require().NoError(err)
	check(sess)

	sess, err = s.svc.Review(s.asManager(4*time.Hour), res.Session.ID, models.ReviewRequest{Decision: models.DecisionReject, Notes: "position filled"})
	s.Require().NoError(err)
	check(sess)
}

func (s *ServiceSuite) TestHRChangeRequestRestartsAtManager() {
	res := s.managerApproved()

	_, err := s.svc.Review(s.asHR(2*time.Hour), res.Session.ID, models.ReviewRequest{
		Decision:     models.DecisionRequestChanges,
		Notes:        "I-9 attestation missing detail",
		EditRequests: []models.EditRequestInput{{Section: models.StepI9, Field: "citizenshipStatus", Reason: "confirm status"}},
	})
	s.Require().NoError(err)

	s.step(res.Token, models.StepI9, `{"citizenshipStatus":"citizen","attestation":true}`)
	sess, err := s.svc.Submit(s.at(3*time.Hour), res.Token)
	s.Require().NoError(err)
	s.Equal(models.StatusSubmitted, sess.Status)

	_, err = s.svc.Review(s.asHR(4*time.Hour), res.Session.ID, models.ReviewRequest{Decision: models.DecisionApprove})
	s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))
}

func (s *ServiceSuite) TestMaterializationFailureAndRetry() {
	res := s.managerApproved()
	rec := s.record()
	gomock.InOrder(
		s.materializer.EXPECT().Materialize(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeMaterializationFailed, "personal information section is missing")),
		s.materializer.EXPECT().Materialize(gomock.Any(), gomock.Any()).Return(rec, nil),
	)

	_, err := s.svc.Review(s.asHR(2*time.Hour), res.Session.ID, models.ReviewRequest{Decision: models.DecisionApprove})
	s.True(dErrors.HasCode(err, dErrors.CodeMaterializationFailed))

	stuck, err := s.store.FindByID(context.Background(), res.Session.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, stuck.Status)
	alerts := s.relay.OfKind(notify.KindMaterializationFailure)
	s.Require().Len(alerts, 1)
	s.Equal(notify.RoleHR, alerts[0].Recipient.Role)

	_, err = s.svc.RetryMaterialization(s.asManager(3*time.Hour), res.Session.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	done, err := s.svc.RetryMaterialization(s.asHR(3*time.Hour), res.Session.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, done.Status)
	s.Equal(rec.ID, *done.EmployeeID)

	_, err = s.svc.RetryMaterialization(s.asHR(4*time.Hour), res.Session.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

// flakyCompletionStore fails the first write to an approved session, which
// is the completion step after the employee record exists.
type flakyCompletionStore struct {
	*session.InMemoryStore
	mu     sync.Mutex
	failed bool
}

func (f *flakyCompletionStore) Execute(ctx context.Context, sessionID id.SessionID, validate func(*models.Session) error, mutate func(*models.Session)) (*models.Session, error) {
	f.mu.Lock()
	if !f.failed {
		if cur, err := f.InMemoryStore.FindByID(ctx, sessionID); err == nil && cur.Status == models.StatusApproved {
			f.failed = true
			f.mu.Unlock()
			return nil, errors.New("connection reset by peer")
		}
	}
	f.mu.Unlock()
	return f.InMemoryStore.Execute(ctx, sessionID, validate, mutate)
}

func (s *ServiceSuite) TestCompletionFailureReissuesActivationCode() {
	employees := employeesvc.New(employeestore.NewInMemoryStore())
	s.svc = service.New(&flakyCompletionStore{InMemoryStore: s.store},
		token.NewIssuer(token.Policy{RemoteTTL: 72 * time.Hour, WalkInTTL: 120 * time.Hour}),
		employees, s.storage, service.WithNotifier(s.relay))
	res := s.managerApproved()

	_, err := s.svc.Review(s.asHR(2*time.Hour), res.Session.ID, models.ReviewRequest{Decision: models.DecisionApprove})
	s.True(dErrors.HasCode(err, dErrors.CodeMaterializationFailed))
	s.Len(s.relay.OfKind(notify.KindMaterializationFailure), 1)
	stuck, err := s.store.FindByID(context.Background(), res.Session.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, stuck.Status)

	done, err := s.svc.RetryMaterialization(s.asHR(3*time.Hour), res.Session.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, done.Status)
	s.Require().NotNil(done.EmployeeID)

	var final *notify.Notification
	for _, n := range s.relay.OfKind(notify.KindApproval) {
		if n.Payload["stage"] == "final" {
			final = &n
		}
	}
	s.Require().NotNil(final)
	code := final.Payload["activationCode"]
	s.Require().NotEmpty(code)
	s.NoError(employees.Activate(s.at(4*time.Hour), *done.EmployeeID, code))
}

func (s *ServiceSuite) TestRejection() {
	res := s.submitted()

	sess, err := s.svc.Review(s.asManager(time.Hour), res.Session.ID, models.ReviewRequest{
		Decision: models.DecisionReject, Notes: "failed background check",
	})
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, sess.Status)
	s.Equal("failed background check", sess.ReviewNotes)
	s.Require().NotNil(sess.ReviewedBy)
	s.Equal(s.managerID, *sess.ReviewedBy)
	s.Len(s.relay.OfKind(notify.KindRejection), 1)
}

func (s *ServiceSuite) TestInvalidate() {
	live := s.issue(models.DeliveryWalkIn)

	sess, err := s.svc.Invalidate(s.asManager(time.Minute), live.Session.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, sess.Status)

	_, err = s.svc.GetByToken(s.at(2*time.Minute), live.Token)
	s.True(dErrors.HasCode(err, dErrors.CodeTokenExpired))

	s.SetupTest()
	res := s.submitted()
	_, err = s.svc.Invalidate(s.asManager(time.Hour), res.Session.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))
}

func (s *ServiceSuite) TestListGetAndDocuments() {
	res := s.submitted()

	list, err := s.svc.List(s.asManager(time.Hour), models.ListFilter{Statuses: []models.Status{models.StatusSubmitted}})
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(res.Session.ID, list[0].ID)

	_, err = s.svc.List(s.asManager(time.Hour), models.ListFilter{Statuses: []models.Status{"archived"}})
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	sess, err := s.svc.Get(s.asManager(time.Hour), res.Session.ID)
	s.Require().NoError(err)
	s.Require().Len(sess.Documents, 1)

	link, err := s.svc.DocumentURL(s.asManager(time.Hour), res.Session.ID, sess.Documents[0].ID)
	s.Require().NoError(err)
	s.Equal("memory://"+sess.Documents[0].StorageKey, link)

	_, err = s.svc.DocumentURL(s.asManager(time.Hour), res.Session.ID, id.NewDocumentID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestAttachDocumentRejectsBadUploads() {
	res := s.issue(models.DeliveryWalkIn)

	_, err := s.svc.AttachDocument(s.at(time.Minute), res.Token, documents.Upload{
		Type: "library_card", Filename: "card.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4"),
	})
	s.True(dErrors.HasCode(err, dErrors.CodeStepValidationFailed))
}

func TestTokenIndexIsConsulted(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := session.NewInMemoryStore()
	index := mocks.NewMockTokenIndex(ctrl)
	svc := service.New(store, token.NewIssuer(token.Policy{RemoteTTL: time.Hour, WalkInTTL: time.Hour}), mocks.NewMockMaterializer(ctrl),
		documents.NewInMemoryStorage(), service.WithTokenIndex(index))

	orgID, managerID := id.NewOrganizationID(), id.NewUserID()
	ctx := requestcontext.WithReviewer(context.Background(), requestcontext.ReviewerIdentity{
		UserID: managerID, OrganizationID: orgID, Role: requestcontext.RoleManager,
	})

	index.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	res, err := svc.IssueSession(ctx, models.IssueRequest{
		OrganizationID: orgID,
		ManagerID:      managerID,
		Candidate:      models.Candidate{FirstName: "Ana", LastName: "Lopez", Email: "ana@example.com", Position: "Houseperson"},
		Delivery:       models.DeliveryWalkIn,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	index.EXPECT().Lookup(gomock.Any(), res.Session.TokenHash).Return(res.Session.ID, true, nil)
	sess, err := svc.GetByToken(context.Background(), res.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sess.ID != res.Session.ID {
		t.Fatalf("got session %s, want %s", sess.ID, res.Session.ID)
	}
}
