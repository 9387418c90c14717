package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gramv/onboardingsoftware-sub000/internal/employee/models"
	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/sentinel"
)

// Error Contract:
// - ErrNotFound when the record or account does not exist
// - ErrAlreadyUsed when the employee number is taken by another session
// - ErrInvalidState when an account is activated twice

// InMemoryStore keeps employees in memory for tests/dev.
type InMemoryStore struct {
	mu        sync.RWMutex
	records   map[id.EmployeeID]*models.Record
	bySession map[id.SessionID]id.EmployeeID
	numbers   map[string]id.EmployeeID
	accounts  map[id.EmployeeID]*models.UserAccount
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records:   make(map[id.EmployeeID]*models.Record),
		bySession: make(map[id.SessionID]id.EmployeeID),
		numbers:   make(map[string]id.EmployeeID),
		accounts:  make(map[id.EmployeeID]*models.UserAccount),
	}
}

// CreateForSession stores rec and account unless the session already has a
// record, in which case the existing record is returned with created=false.
func (s *InMemoryStore) CreateForSession(_ context.Context, rec *models.Record, account *models.UserAccount) (*models.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.bySession[rec.SessionID]; ok {
		existing := *s.records[existingID]
		return &existing, false, nil
	}
	if _, taken := s.numbers[rec.EmployeeNumber]; taken {
		return nil, false, fmt.Errorf("employee number %s: %w", rec.EmployeeNumber, sentinel.ErrAlreadyUsed)
	}

	stored := *rec
	stored.ActivationCode = ""
	s.records[rec.ID] = &stored
	s.bySession[rec.SessionID] = rec.ID
	s.numbers[rec.EmployeeNumber] = rec.ID
	acct := *account
	s.accounts[rec.ID] = &acct

	out := *rec
	return &out, true, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, employeeID id.EmployeeID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[employeeID]
	if !ok {
		return nil, fmt.Errorf("employee not found: %w", sentinel.ErrNotFound)
	}
	out := *rec
	return &out, nil
}

func (s *InMemoryStore) FindBySession(_ context.Context, sessionID id.SessionID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	employeeID, ok := s.bySession[sessionID]
	if !ok {
		return nil, fmt.Errorf("employee not found: %w", sentinel.ErrNotFound)
	}
	out := *s.records[employeeID]
	return &out, nil
}

func (s *InMemoryStore) FindAccount(_ context.Context, employeeID id.EmployeeID) (*models.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[employeeID]
	if !ok {
		return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
	}
	out := *acct
	return &out, nil
}

func (s *InMemoryStore) ActivateAccount(_ context.Context, employeeID id.EmployeeID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[employeeID]
	if !ok {
		return fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
	}
	if acct.ActivatedAt != nil {
		return fmt.Errorf("account already activated: %w", sentinel.ErrInvalidState)
	}
	at := now
	acct.ActivatedAt = &at
	acct.ActivationHash = ""
	return nil
}

// RotateActivationHash replaces the activation hash of an account that has
// not been activated yet.
func (s *InMemoryStore) RotateActivationHash(_ context.Context, employeeID id.EmployeeID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[employeeID]
	if !ok {
		return fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
	}
	if acct.ActivatedAt != nil {
		return fmt.Errorf("account already activated: %w", sentinel.ErrInvalidState)
	}
	acct.ActivationHash = hash
	return nil
}
