package models

import (
	"maps"
	"slices"
	"strings"
	"time"

	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
)

// TokenKind distinguishes walk-in access codes from emailed bearer links.
type TokenKind string

const (
	TokenKindAccessCode TokenKind = "access_code"
	TokenKindBearer     TokenKind = "bearer"
)

func (k TokenKind) IsValid() bool {
	return k == TokenKindAccessCode || k == TokenKindBearer
}

// Role identifies who performed a transition.
type Role string

const (
	RoleApplicant Role = "applicant"
	RoleManager   Role = "manager"
	RoleHR        Role = "hr"
	RoleSystem    Role = "system"
)

// Actor is the party behind a transition.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Candidate is the denormalized subject of a session.
type Candidate struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	Position   string `json:"position"`
	Department string `json:"department"`
}

// NormalizedEmail is the key used for one-live-session-per-candidate checks.
func (c Candidate) NormalizedEmail() string {
	return strings.ToLower(strings.TrimSpace(c.Email))
}

// Offer is the job offer snapshot carried into the employee record.
type Offer struct {
	PayRate             float64   `json:"payRate"`
	StartDate           string    `json:"startDate"`
	StartTime           string    `json:"startTime,omitempty"`
	SupervisorID        id.UserID `json:"supervisorId"`
	SpecialInstructions string    `json:"specialInstructions,omitempty"`
}

// StepStatus is the completion state of one step.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusCompleted StepStatus = "completed"
)

type StepState struct {
	Status      StepStatus `json:"status"`
	Skipped     bool       `json:"skipped,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Transition is one entry in the session's audit trail.
type Transition struct {
	From   Status    `json:"from"`
	To     Status    `json:"to"`
	Action Action    `json:"action"`
	Actor  Actor     `json:"actor"`
	Notes  string    `json:"notes,omitempty"`
	At     time.Time `json:"at"`
}

// Session is the aggregate root of one onboarding workflow instance.
//
// Invariants:
//   - Status only changes through ApplyTransition, which follows the transition table
//   - CurrentStep is always a canonical step key
//   - ExpiresAt is set at construction and never reassigned
//   - EditRequests is non-empty only while Status is requires_changes
type Session struct {
	ID             id.SessionID      `json:"id"`
	OrganizationID id.OrganizationID `json:"organizationId"`
	ApplicationID  *id.ApplicationID `json:"applicationId,omitempty"`
	Candidate      Candidate         `json:"candidate"`
	ManagerID      id.UserID         `json:"managerId"`
	Offer          *Offer            `json:"offer,omitempty"`

	TokenKind TokenKind `json:"tokenKind"`
	TokenHash string    `json:"tokenHash"`
	ExpiresAt time.Time `json:"expiresAt"`

	Status      Status                `json:"status"`
	CurrentStep StepKey               `json:"currentStep"`
	Steps       map[StepKey]StepState `json:"steps"`

	FormData   FormData             `json:"formData"`
	Documents  []Document           `json:"documents"`
	Signatures map[string]Signature `json:"signatures"`

	EditRequests         []EditRequest `json:"editRequests,omitempty"`
	ResolvedEditRequests []EditRequest `json:"resolvedEditRequests,omitempty"`
	ChangesRequestedBy   Role          `json:"changesRequestedBy,omitempty"`
	History              []Transition  `json:"history"`

	Device      string         `json:"device,omitempty"`
	SubmittedAt *time.Time     `json:"submittedAt,omitempty"`
	ReviewedAt  *time.Time     `json:"reviewedAt,omitempty"`
	ReviewedBy  *id.UserID     `json:"reviewedBy,omitempty"`
	ReviewNotes string         `json:"reviewNotes,omitempty"`
	EmployeeID  *id.EmployeeID `json:"employeeId,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Version     int64          `json:"version"`
}

// NewSession builds a pending session positioned at firstStep.
func NewSession(sessionID id.SessionID, orgID id.OrganizationID, candidate Candidate, managerID id.UserID,
	kind TokenKind, tokenHash string, expiresAt time.Time, firstStep StepKey, now time.Time) (*Session, error) {
	if orgID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "organization is required")
	}
	if strings.TrimSpace(candidate.Email) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "candidate email is required")
	}
	if !kind.IsValid() || tokenHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session token is required")
	}
	if !expiresAt.After(now) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "expiry must be in the future")
	}
	return &Session{
		ID:             sessionID,
		OrganizationID: orgID,
		Candidate:      candidate,
		ManagerID:      managerID,
		TokenKind:      kind,
		TokenHash:      tokenHash,
		ExpiresAt:      expiresAt,
		Status:         StatusPending,
		CurrentStep:    firstStep,
		Steps:          map[StepKey]StepState{},
		Documents:      []Document{},
		Signatures:     map[string]Signature{},
		History:        []Transition{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// IsExpired is monotonic: once the expiry passes or the session is marked
// expired it stays expired.
func (s *Session) IsExpired(now time.Time) bool {
	return s.Status == StatusExpired || now.After(s.ExpiresAt)
}

// IsComplete reports whether the workflow finished with an employee record.
func (s *Session) IsComplete() bool {
	return s.Status == StatusCompleted
}

// CanApply returns the status action leads to. It fails with
// CodeConflict when another actor already moved the session past the
// action's source status, and CodeIllegalTransition otherwise.
func (s *Session) CanApply(action Action) (Status, error) {
	if to, ok := Next(s.Status, action); ok {
		return to, nil
	}
	if Superseded(s.Status, action) {
		return "", dErrors.New(dErrors.CodeConflict, "session was already moved to "+string(s.Status))
	}
	return "", dErrors.New(dErrors.CodeIllegalTransition,
		"action "+string(action)+" is not allowed from status "+string(s.Status))
}

// ApplyTransition moves the session to `to` and records the history entry.
// Call CanApply first.
func (s *Session) ApplyTransition(action Action, to Status, actor Actor, notes string, now time.Time) {
	s.History = append(s.History, Transition{
		From:   s.Status,
		To:     to,
		Action: action,
		Actor:  actor,
		Notes:  notes,
		At:     now,
	})
	s.Status = to
	s.UpdatedAt = now
}

// Step returns the state of key, defaulting to pending.
func (s *Session) Step(key StepKey) StepState {
	if st, ok := s.Steps[key]; ok {
		return st
	}
	return StepState{Status: StepStatusPending}
}

func (s *Session) IsStepCompleted(key StepKey) bool {
	return s.Step(key).Status == StepStatusCompleted
}

func (s *Session) MarkStepCompleted(key StepKey, skipped bool, now time.Time) {
	if s.Steps == nil {
		s.Steps = map[StepKey]StepState{}
	}
	at := now
	s.Steps[key] = StepState{Status: StepStatusCompleted, Skipped: skipped, CompletedAt: &at}
}

func (s *Session) ResetStep(key StepKey) {
	if s.Steps == nil {
		s.Steps = map[StepKey]StepState{}
	}
	s.Steps[key] = StepState{Status: StepStatusPending}
}

// Clone returns a deep copy so stores never hand out shared state.
func (s *Session) Clone() *Session {
	out := *s
	if s.ApplicationID != nil {
		v := *s.ApplicationID
		out.ApplicationID = &v
	}
	if s.Offer != nil {
		v := *s.Offer
		out.Offer = &v
	}
	out.Steps = make(map[StepKey]StepState, len(s.Steps))
	for k, v := range s.Steps {
		if v.CompletedAt != nil {
			t := *v.CompletedAt
			v.CompletedAt = &t
		}
		out.Steps[k] = v
	}
	out.FormData = s.FormData.Clone()
	out.Documents = slices.Clone(s.Documents)
	for i := range out.Documents {
		out.Documents[i].OCR = maps.Clone(out.Documents[i].OCR)
	}
	out.Signatures = maps.Clone(s.Signatures)
	out.EditRequests = slices.Clone(s.EditRequests)
	out.ResolvedEditRequests = slices.Clone(s.ResolvedEditRequests)
	out.History = slices.Clone(s.History)
	out.SubmittedAt = cloneTime(s.SubmittedAt)
	out.ReviewedAt = cloneTime(s.ReviewedAt)
	out.CompletedAt = cloneTime(s.CompletedAt)
	if s.ReviewedBy != nil {
		v := *s.ReviewedBy
		out.ReviewedBy = &v
	}
	if s.EmployeeID != nil {
		v := *s.EmployeeID
		out.EmployeeID = &v
	}
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
