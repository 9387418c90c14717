// Package domain holds typed identifiers shared across modules.
//
// Each identifier wraps a uuid.UUID so the compiler rejects passing a
// SessionID where an OrganizationID is expected. Parse functions are the
// trust boundary for identifiers arriving from HTTP paths and bodies.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
)

type (
	OrganizationID uuid.UUID
	SessionID      uuid.UUID
	ApplicationID  uuid.UUID
	EmployeeID     uuid.UUID
	UserID         uuid.UUID
	DocumentID     uuid.UUID
	EditRequestID  uuid.UUID
)

func parseUUID(kind, raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	return parsed, nil
}

func ParseOrganizationID(s string) (OrganizationID, error) {
	u, err := parseUUID("organization id", s)
	return OrganizationID(u), err
}

func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID("session id", s)
	return SessionID(u), err
}

func ParseApplicationID(s string) (ApplicationID, error) {
	u, err := parseUUID("application id", s)
	return ApplicationID(u), err
}

func ParseEmployeeID(s string) (EmployeeID, error) {
	u, err := parseUUID("employee id", s)
	return EmployeeID(u), err
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user id", s)
	return UserID(u), err
}

func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID("document id", s)
	return DocumentID(u), err
}

func NewOrganizationID() OrganizationID { return OrganizationID(uuid.New()) }
func NewSessionID() SessionID           { return SessionID(uuid.New()) }
func NewApplicationID() ApplicationID   { return ApplicationID(uuid.New()) }
func NewEmployeeID() EmployeeID         { return EmployeeID(uuid.New()) }
func NewUserID() UserID                 { return UserID(uuid.New()) }
func NewDocumentID() DocumentID         { return DocumentID(uuid.New()) }
func NewEditRequestID() EditRequestID   { return EditRequestID(uuid.New()) }

func (id OrganizationID) String() string { return uuid.UUID(id).String() }
func (id OrganizationID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id OrganizationID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *OrganizationID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id SessionID) String() string { return uuid.UUID(id).String() }
func (id SessionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *SessionID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id ApplicationID) String() string { return uuid.UUID(id).String() }
func (id ApplicationID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ApplicationID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *ApplicationID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id EmployeeID) String() string { return uuid.UUID(id).String() }
func (id EmployeeID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id EmployeeID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *EmployeeID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id UserID) String() string { return uuid.UUID(id).String() }
func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id UserID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *UserID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id DocumentID) String() string { return uuid.UUID(id).String() }
func (id DocumentID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *DocumentID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id EditRequestID) String() string { return uuid.UUID(id).String() }
func (id EditRequestID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *EditRequestID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
