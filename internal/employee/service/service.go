package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gramv/onboardingsoftware-sub000/internal/employee/models"
	"github.com/gramv/onboardingsoftware-sub000/internal/employee/secrets"
	onboarding "github.com/gramv/onboardingsoftware-sub000/internal/onboarding/models"
	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/audit"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/sentinel"
	"github.com/gramv/onboardingsoftware-sub000/pkg/requestcontext"
)

const employeeNumberAttempts = 3

type Store interface {
	CreateForSession(ctx context.Context, rec *models.Record, account *models.UserAccount) (*models.Record, bool, error)
	FindByID(ctx context.Context, employeeID id.EmployeeID) (*models.Record, error)
	FindBySession(ctx context.Context, sessionID id.SessionID) (*models.Record, error)
	FindAccount(ctx context.Context, employeeID id.EmployeeID) (*models.UserAccount, error)
	ActivateAccount(ctx context.Context, employeeID id.EmployeeID, now time.Time) error
	RotateActivationHash(ctx context.Context, employeeID id.EmployeeID, hash string) error
}

// Service turns approved onboarding sessions into employee records.
type Service struct {
	store   Store
	logger  *slog.Logger
	auditor *audit.Recorder
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

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.auditor == nil {
		s.auditor = audit.NewRecorder(s.logger)
	}
	return s
}

// Materialize creates the employee record and login account for an approved
// session. Calling it again for the same session returns the existing record.
// While that account is still unactivated a fresh activation code replaces
// the old one, since the first code may never have reached the employee.
func (s *Service) Materialize(ctx context.Context, sess *onboarding.Session) (*models.Record, error) {
	if sess.Status != onboarding.StatusApproved && sess.Status != onboarding.StatusCompleted {
		return nil, dErrors.New(dErrors.CodeMaterializationFailed, "session is not approved")
	}

	existing, err := s.store.FindBySession(ctx, sess.ID)
	if err == nil {
		return s.reissueActivation(ctx, existing)
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeMaterializationFailed, "failed to look up employee")
	}

	now := requestcontext.Now(ctx)
	rec, err := buildRecord(sess, now)
	if err != nil {
		return nil, err
	}

	code, hash, err := newActivationCode()
	if err != nil {
		return nil, err
	}
	account := &models.UserAccount{
		ID:             id.NewUserID(),
		OrganizationID: rec.OrganizationID,
		EmployeeID:     rec.ID,
		Email:          rec.Email,
		Role:           models.RoleEmployee,
		ActivationHash: hash,
		CreatedAt:      now,
	}

	for attempt := 0; attempt < employeeNumberAttempts; attempt++ {
		number, err := employeeNumber()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeMaterializationFailed, "failed to generate employee number")
		}
		rec.EmployeeNumber = number

		stored, created, err := s.store.CreateForSession(ctx, rec, account)
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			continue
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeMaterializationFailed, "failed to store employee")
		}
		if created {
			stored.ActivationCode = code
			s.logAudit(ctx, "employee_materialized",
				"employee_id", stored.ID,
				"session_id", sess.ID,
				"organization_id", stored.OrganizationID,
				"employee_number", stored.EmployeeNumber,
			)
		}
		return stored, nil
	}
	return nil, dErrors.New(dErrors.CodeMaterializationFailed, "could not allocate a unique employee number")
}

func (s *Service) reissueActivation(ctx context.Context, rec *models.Record) (*models.Record, error) {
	acct, err := s.store.FindAccount(ctx, rec.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeMaterializationFailed, "failed to load employee account")
	}
	if acct.ActivatedAt != nil {
		return rec, nil
	}
	code, hash, err := newActivationCode()
	if err != nil {
		return nil, err
	}
	if err := s.store.RotateActivationHash(ctx, rec.ID, hash); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return rec, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeMaterializationFailed, "failed to rotate activation code")
	}
	rec.ActivationCode = code
	s.logAudit(ctx, "employee_activation_reissued",
		"employee_id", rec.ID,
		"session_id", rec.SessionID,
		"organization_id", rec.OrganizationID,
	)
	return rec, nil
}

func newActivationCode() (code, hash string, err error) {
	code, err = secrets.GenerateActivationCode()
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeMaterializationFailed, "failed to generate activation code")
	}
	hash, err = secrets.Hash(code)
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeMaterializationFailed, "failed to hash activation code")
	}
	return code, hash, nil
}

// Get returns an employee scoped to orgID.
func (s *Service) Get(ctx context.Context, orgID id.OrganizationID, employeeID id.EmployeeID) (*models.Record, error) {
	rec, err := s.store.FindByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "employee not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load employee")
	}
	if rec.OrganizationID != orgID {
		return nil, dErrors.New(dErrors.CodeNotFound, "employee not found")
	}
	return rec, nil
}

// Activate consumes the one-time activation code for an employee login.
func (s *Service) Activate(ctx context.Context, employeeID id.EmployeeID, code string) error {
	acct, err := s.store.FindAccount(ctx, employeeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	if acct.ActivatedAt != nil {
		return dErrors.New(dErrors.CodeConflict, "account already activated")
	}
	if err := secrets.Verify(strings.ToUpper(strings.TrimSpace(code)), acct.ActivationHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			return dErrors.New(dErrors.CodeUnauthorized, "invalid activation code")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify activation code")
	}
	if err := s.store.ActivateAccount(ctx, employeeID, requestcontext.Now(ctx)); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return dErrors.New(dErrors.CodeConflict, "account already activated")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to activate account")
	}
	s.logAudit(ctx, "employee_account_activated", "employee_id", employeeID)
	return nil
}

func buildRecord(sess *onboarding.Session, now time.Time) (*models.Record, error) {
	personal := sess.FormData.Personal
	if personal == nil {
		return nil, dErrors.New(dErrors.CodeMaterializationFailed, "personal information section is missing")
	}
	if personal.FirstName == "" || personal.LastName == "" || personal.Email == "" {
		return nil, dErrors.New(dErrors.CodeMaterializationFailed, "personal information is incomplete")
	}

	rec := &models.Record{
		ID:             id.NewEmployeeID(),
		OrganizationID: sess.OrganizationID,
		SessionID:      sess.ID,
		ApplicationID:  sess.ApplicationID,
		FirstName:      personal.FirstName,
		MiddleInitial:  personal.MiddleInitial,
		LastName:       personal.LastName,
		PreferredName:  personal.PreferredName,
		Email:          strings.ToLower(personal.Email),
		Phone:          personal.Phone,
		Address:        personal.Address,
		Position:       sess.Candidate.Position,
		Department:     sess.Candidate.Department,
		ManagerID:      sess.ManagerID,
		HiredAt:        now,
		CreatedAt:      now,
	}
	if ec := sess.FormData.EmergencyContact; ec != nil {
		copied := *ec
		rec.EmergencyContact = &copied
	}
	if offer := sess.Offer; offer != nil {
		rec.PayRate = offer.PayRate
		rec.StartDate = offer.StartDate
		rec.StartTime = offer.StartTime
		if !offer.SupervisorID.IsNil() {
			rec.ManagerID = offer.SupervisorID
		}
	}
	return rec, nil
}

func employeeNumber() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return "EMP-" + strings.ToUpper(hex.EncodeToString(buf)), nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	s.auditor.Record(ctx, event, attributes...)
}
