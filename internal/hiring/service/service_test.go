package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/xuri/excelize/v2"
	"go.uber.org/mock/gomock"

	"github.com/gramv/onboardingsoftware-sub000/internal/documents"
	"github.com/gramv/onboardingsoftware-sub000/internal/hiring/models"
	"github.com/gramv/onboardingsoftware-sub000/internal/hiring/service"
	"github.com/gramv/onboardingsoftware-sub000/internal/hiring/service/mocks"
	"github.com/gramv/onboardingsoftware-sub000/internal/hiring/store"
	onboarding "github.com/gramv/onboardingsoftware-sub000/internal/onboarding/models"
	onboardingsvc "github.com/gramv/onboardingsoftware-sub000/internal/onboarding/service"
	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/store/session"
	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/token"
	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
	"github.com/gramv/onboardingsoftware-sub000/pkg/requestcontext"
)

type HiringSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	store  *store.InMemoryStore
	issuer *mocks.MockSessionIssuer
	svc    *service.Service

	now       time.Time
	orgID     id.OrganizationID
	managerID id.UserID
}

func TestHiringSuite(t *testing.T) {
	suite.Run(t, new(HiringSuite))
}

func (s *HiringSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = store.NewInMemoryStore()
	s.issuer = mocks.NewMockSessionIssuer(s.ctrl)
	s.svc = service.New(s.store, s.issuer)
	s.now = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	s.orgID = id.NewOrganizationID()
	s.managerID = id.NewUserID()
}

func (s *HiringSuite) public() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *HiringSuite) manager() context.Context {
	return requestcontext.WithReviewer(s.public(), requestcontext.ReviewerIdentity{
		UserID: s.managerID, OrganizationID: s.orgID, Role: requestcontext.RoleManager,
	})
}

func (s *HiringSuite) submit() *models.JobApplication {
	app, err := s.svc.Submit(s.public(), s.orgID, models.SubmitRequest{
		FirstName: " Ana ", LastName: "Lopez", Email: "Ana@Example.com", Phone: "555-201-3344",
		Position: "Front Desk Agent", Department: "Front Office",
	})
	s.Require().NoError(err)
	return app
}

func validOffer() models.JobOffer {
	return models.JobOffer{PayRate: 16.5, StartDate: "2025-03-10", StartTime: "07:00", Delivery: onboarding.DeliveryWalkIn}
}

func (s *HiringSuite) TestSubmit() {
	app := s.submit()
	s.Equal(models.StatusPending, app.Status)
	s.Equal("Ana", app.Applicant.FirstName)
	s.Equal("ana@example.com", app.Applicant.Email)
	s.Equal(s.now, app.CreatedAt)

	_, err := s.svc.Submit(s.public(), s.orgID, models.SubmitRequest{FirstName: "Ana", Email: "not-an-email"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	fields := dErrors.FieldsOf(err)
	s.Contains(fields, "lastName")
	s.Contains(fields, "email")
	s.Contains(fields, "position")
}

func (s *HiringSuite) TestListAndGet() {
	app := s.submit()

	_, err := s.svc.List(s.public(), models.ListFilter{})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	apps, err := s.svc.List(s.manager(), models.ListFilter{Statuses: []models.Status{models.StatusPending}})
	s.Require().NoError(err)
	s.Require().Len(apps, 1)
	s.Equal(app.ID, apps[0].ID)

	_, err = s.svc.List(s.manager(), models.ListFilter{Statuses: []models.Status{"hired"}})
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	got, err := s.svc.Get(s.manager(), app.ID)
	s.Require().NoError(err)
	s.Equal(app.Applicant, got.Applicant)

	outsider := requestcontext.WithReviewer(s.public(), requestcontext.ReviewerIdentity{
		UserID: id.NewUserID(), OrganizationID: id.NewOrganizationID(), Role: requestcontext.RoleHR,
	})
	_, err = s.svc.Get(outsider, app.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *HiringSuite) TestMarkReviewed() {
	app := s.submit()

	reviewed, err := s.svc.MarkReviewed(s.manager(), app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusReviewed, reviewed.Status)
	s.Require().NotNil(reviewed.ReviewedBy)
	s.Equal(s.managerID, *reviewed.ReviewedBy)

	_, err = s.svc.MarkReviewed(s.manager(), app.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	_, err = s.svc.MarkReviewed(s.manager(), id.NewApplicationID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *HiringSuite) TestReject() {
	app := s.submit()

	_, err := s.svc.Reject(s.manager(), app.ID, "")
	s.True(dErrors.HasCode(err, dErrors.CodeReviewerNotesRequired))

	rejected, err := s.svc.Reject(s.manager(), app.ID, "position filled")
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, rejected.Status)
	s.Equal("position filled", rejected.Notes)

	_, err = s.svc.Approve(s.manager(), app.ID, validOffer())
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *HiringSuite) TestApproveValidatesOffer() {
	app := s.submit()
	cases := map[string]func(*models.JobOffer){
		"payRate":   func(o *models.JobOffer) { o.PayRate = 7.00 },
		"startDate": func(o *models.JobOffer) { o.StartDate = "2025-03-09" },
		"startTime": func(o *models.JobOffer) { o.StartTime = "7am" },
		"delivery":  func(o *models.JobOffer) { o.Delivery = "carrier_pigeon" },
	}
	for field, mutate := range cases {
		s.Run(field, func() {
			offer := validOffer()
			mutate(&offer)
			_, err := s.svc.Approve(s.manager(), app.ID, offer)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
			s.Contains(dErrors.FieldsOf(err), field)
		})
	}

	stored, err := s.store.FindByID(context.Background(), app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, stored.Status)
}

func (s *HiringSuite) TestApproveHonorsConfiguredFloor() {
	svc := service.New(s.store, s.issuer, service.WithPayRateFloor(9))
	app := s.submit()
	offer := validOffer()
	offer.PayRate = 8.5

	_, err := svc.Approve(s.manager(), app.ID, offer)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *HiringSuite) TestApproveIssuesSession() {
	app := s.submit()
	sess := &onboarding.Session{ID: id.NewSessionID(), OrganizationID: s.orgID}
	s.issuer.EXPECT().
		IssueSession(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req onboarding.IssueRequest) (*onboardingsvc.IssueResult, error) {
			s.Equal(s.orgID, req.OrganizationID)
			s.Require().NotNil(req.ApplicationID)
			s.Equal(app.ID, *req.ApplicationID)
			s.Equal("ana@example.com", req.Candidate.Email)
			s.Equal("Front Office", req.Candidate.Department)
			s.Equal(s.managerID, req.ManagerID)
			s.Equal(onboarding.DeliveryWalkIn, req.Delivery)
			s.Require().NotNil(req.Offer)
			s.InDelta(16.5, req.Offer.PayRate, 0.001)
			return &onboardingsvc.IssueResult{Session: sess, Token: "K7P2QX"}, nil
		})

	res, err := s.svc.Approve(s.manager(), app.ID, validOffer())
	s.Require().NoError(err)
	s.Equal("K7P2QX", res.Token)
	s.Equal(models.StatusApproved, res.Application.Status)
	s.Require().NotNil(res.Application.SessionID)
	s.Equal(sess.ID, *res.Application.SessionID)

	stored, err := s.store.FindByID(context.Background(), app.ID)
	s.Require().NoError(err)
	s.Equal(sess.ID, *stored.SessionID)
	s.Require().NotNil(stored.Offer)
	s.Equal(s.managerID, stored.Offer.SupervisorID)
}

func (s *HiringSuite) TestApproveReleasesClaimWhenIssuingFails() {
	app := s.submit()
	s.issuer.EXPECT().
		IssueSession(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeConflict, "candidate already has a session under review"))

	_, err := s.svc.Approve(s.manager(), app.ID, validOffer())
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	stored, err := s.store.FindByID(context.Background(), app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, stored.Status)
	s.Nil(stored.Offer)
	s.Nil(stored.ReviewedBy)
}

func (s *HiringSuite) TestImport() {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Name", "Email", "Position", "Department"},
		{"Ana Lopez", "ana@example.com", "Front Desk Agent", "Front Office"},
		{"Luis Ortega", "luis-at-example", "Line Cook", "Kitchen"},
		{"Ana Lopez", "ANA@example.com", "Front Desk Agent", "Front Office"},
		{"Mei Chen", "mei@example.com", "Night Auditor", "Front Office"},
	}
	for i, row := range rows {
		addr, err := excelize.CoordinatesToCellName(1, i+1)
		s.Require().NoError(err)
		s.Require().NoError(f.SetSheetRow(sheet, addr, &row))
	}
	buf, err := f.WriteToBuffer()
	s.Require().NoError(err)

	res, err := s.svc.Import(s.manager(), "march.xlsx", buf.Bytes())
	s.Require().NoError(err)
	s.Len(res.Created, 2)
	s.Require().Len(res.Failed, 2)
	s.Equal(3, res.Failed[0].Line)
	s.Contains(res.Failed[0].Fields, "email")
	s.Equal(4, res.Failed[1].Line)

	apps, err := s.svc.List(s.manager(), models.ListFilter{})
	s.Require().NoError(err)
	s.Len(apps, 2)

	_, err = s.svc.Import(s.public(), "march.xlsx", buf.Bytes())
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestApproveOpensWalkInSession(t *testing.T) {
	sessions := session.NewInMemoryStore()
	onboardingService := onboardingsvc.New(sessions,
		token.NewIssuer(token.Policy{RemoteTTL: 72 * time.Hour, WalkInTTL: 120 * time.Hour}),
		nil, documents.NewInMemoryStorage())
	svc := service.New(store.NewInMemoryStore(), onboardingService)

	orgID, managerID := id.NewOrganizationID(), id.NewUserID()
	now := time.Now().UTC()
	ctx := requestcontext.WithReviewer(requestcontext.WithTime(context.Background(), now), requestcontext.ReviewerIdentity{
		UserID: managerID, OrganizationID: orgID, Role: requestcontext.RoleManager,
	})

	app, err := svc.Submit(ctx, orgID, models.SubmitRequest{
		FirstName: "Ana", LastName: "Lopez", Email: "ana@example.com", Position: "Houseperson",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	offer := validOffer()
	offer.StartDate = now.Format("2006-01-02")

	res, err := svc.Approve(ctx, app.ID, offer)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if len(res.Token) != token.AccessCodeLength {
		t.Fatalf("walk-in token %q is not an access code", res.Token)
	}
	if res.Session.ApplicationID == nil || *res.Session.ApplicationID != app.ID {
		t.Fatalf("session not linked to application %s", app.ID)
	}
	if res.Session.Offer == nil || res.Session.Offer.StartTime != "07:00" {
		t.Fatalf("offer not carried into session: %+v", res.Session.Offer)
	}

	resolved, err := onboardingService.GetByToken(ctx, res.Token)
	if err != nil {
		t.Fatalf("resolve token: %v", err)
	}
	if resolved.ID != res.Session.ID {
		t.Fatalf("token resolved to %s, want %s", resolved.ID, res.Session.ID)
	}
}
