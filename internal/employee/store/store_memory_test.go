package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/gramv/onboardingsoftware-sub000/internal/employee/models"
	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func newRecord(sessionID id.SessionID, number string) (*models.Record, *models.UserAccount) {
	rec := &models.Record{
		ID:             id.NewEmployeeID(),
		OrganizationID: id.NewOrganizationID(),
		SessionID:      sessionID,
		EmployeeNumber: number,
		Email:          "ana@example.com",
		ActivationCode: "CLEARTEXT1",
		CreatedAt:      time.Now(),
	}
	acct := &models.UserAccount{
		ID:             id.NewUserID(),
		OrganizationID: rec.OrganizationID,
		EmployeeID:     rec.ID,
		Email:          rec.Email,
		Role:           models.RoleEmployee,
		ActivationHash: "hash",
	}
	return rec, acct
}

func (s *InMemoryStoreSuite) TestCreateForSessionIsIdempotent() {
	sessionID := id.NewSessionID()
	rec, acct := newRecord(sessionID, "EMP-0000000A")

	stored, created, err := s.store.CreateForSession(s.ctx, rec, acct)
	s.Require().NoError(err)
	s.True(created)
	s.Equal(rec.ID, stored.ID)

	again, _ := newRecord(sessionID, "EMP-0000000B")
	existing, created, err := s.store.CreateForSession(s.ctx, again, acct)
	s.Require().NoError(err)
	s.False(created)
	s.Equal(rec.ID, existing.ID)
	s.Equal("EMP-0000000A", existing.EmployeeNumber)
	s.Empty(existing.ActivationCode)
}

func (s *InMemoryStoreSuite) TestEmployeeNumberIsUnique() {
	rec, acct := newRecord(id.NewSessionID(), "EMP-0000000A")
	_, _, err := s.store.CreateForSession(s.ctx, rec, acct)
	s.Require().NoError(err)

	other, otherAcct := newRecord(id.NewSessionID(), "EMP-0000000A")
	_, _, err = s.store.CreateForSession(s.ctx, other, otherAcct)
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *InMemoryStoreSuite) TestActivateAccountOnce() {
	rec, acct := newRecord(id.NewSessionID(), "EMP-0000000C")
	_, _, err := s.store.CreateForSession(s.ctx, rec, acct)
	s.Require().NoError(err)

	s.Require().NoError(s.store.ActivateAccount(s.ctx, rec.ID, time.Now()))
	found, err := s.store.FindAccount(s.ctx, rec.ID)
	s.Require().NoError(err)
	s.NotNil(found.ActivatedAt)
	s.Empty(found.ActivationHash)

	s.ErrorIs(s.store.ActivateAccount(s.ctx, rec.ID, time.Now()), sentinel.ErrInvalidState)
	s.ErrorIs(s.store.ActivateAccount(s.ctx, id.NewEmployeeID(), time.Now()), sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestLookupsMissing() {
	_, err := s.store.FindByID(s.ctx, id.NewEmployeeID())
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindBySession(s.ctx, id.NewSessionID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
