package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/gramv/onboardingsoftware-sub000/internal/hiring/models"
	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	orgID id.OrganizationID
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
	s.orgID = id.NewOrganizationID()
}

func newApplication(orgID id.OrganizationID, email string, createdAt time.Time) *models.JobApplication {
	return &models.JobApplication{
		ID:             id.NewApplicationID(),
		OrganizationID: orgID,
		Applicant:      models.Applicant{FirstName: "Ana", LastName: "Lopez", Email: email},
		Position:       "Front Desk Agent",
		Status:         models.StatusPending,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	app := newApplication(s.orgID, "ana@example.com", time.Now())
	s.Require().NoError(s.store.Create(s.ctx, app))

	found, err := s.store.FindByID(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(app.Applicant, found.Applicant)
	s.Equal(int64(1), found.Version)

	err = s.store.Create(s.ctx, app)
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)

	_, err = s.store.FindByID(s.ctx, id.NewApplicationID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestListFiltersAndOrders() {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	older := newApplication(s.orgID, "older@example.com", base)
	newer := newApplication(s.orgID, "newer@example.com", base.Add(time.Hour))
	rejected := newApplication(s.orgID, "rejected@example.com", base.Add(2*time.Hour))
	rejected.Status = models.StatusRejected
	other := newApplication(id.NewOrganizationID(), "other@example.com", base)
	for _, app := range []*models.JobApplication{older, newer, rejected, other} {
		s.Require().NoError(s.store.Create(s.ctx, app))
	}

	all, err := s.store.List(s.ctx, s.orgID, models.ListFilter{})
	s.Require().NoError(err)
	s.Len(all, 3)
	s.Equal(rejected.ID, all[0].ID)

	open, err := s.store.List(s.ctx, s.orgID, models.ListFilter{Statuses: []models.Status{models.StatusPending}, Limit: 1})
	s.Require().NoError(err)
	s.Require().Len(open, 1)
	s.Equal(newer.ID, open[0].ID)
}

func (s *InMemoryStoreSuite) TestExecute() {
	app := newApplication(s.orgID, "ana@example.com", time.Now())
	s.Require().NoError(s.store.Create(s.ctx, app))
	reviewer := id.NewUserID()

	s.Run("mutates when validation passes", func() {
		updated, err := s.store.Execute(s.ctx, app.ID,
			func(a *models.JobApplication) error { return a.CanMarkReviewed() },
			func(a *models.JobApplication) { a.ApplyReviewed(reviewer, time.Now()) })
		s.Require().NoError(err)
		s.Equal(models.StatusReviewed, updated.Status)
		s.Equal(int64(2), updated.Version)
	})

	s.Run("validation failure leaves the record untouched", func() {
		_, err := s.store.Execute(s.ctx, app.ID,
			func(a *models.JobApplication) error { return a.CanMarkReviewed() },
			func(a *models.JobApplication) { a.Notes = "should not persist" })
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		found, err := s.store.FindByID(s.ctx, app.ID)
		s.Require().NoError(err)
		s.Empty(found.Notes)
		s.Equal(int64(2), found.Version)
	})

	s.Run("missing application", func() {
		_, err := s.store.Execute(s.ctx, id.NewApplicationID(), nil, func(*models.JobApplication) {})
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})
}
