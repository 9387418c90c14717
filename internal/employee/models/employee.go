package models

import (
	"time"

	onboarding "github.com/gramv/onboardingsoftware-sub000/internal/onboarding/models"
	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
)

// Record is the permanent employee created from a completed onboarding
// session. One record exists per session.
type Record struct {
	ID               id.EmployeeID                `json:"id"`
	OrganizationID   id.OrganizationID            `json:"organizationId"`
	SessionID        id.SessionID                 `json:"sessionId"`
	ApplicationID    *id.ApplicationID            `json:"applicationId,omitempty"`
	EmployeeNumber   string                       `json:"employeeNumber"`
	FirstName        string                       `json:"firstName"`
	MiddleInitial    string                       `json:"middleInitial,omitempty"`
	LastName         string                       `json:"lastName"`
	PreferredName    string                       `json:"preferredName,omitempty"`
	Email            string                       `json:"email"`
	Phone            string                       `json:"phone"`
	Address          onboarding.Address           `json:"address"`
	EmergencyContact *onboarding.EmergencyContact `json:"emergencyContact,omitempty"`
	Position         string                       `json:"position"`
	Department       string                       `json:"department"`
	ManagerID        id.UserID                    `json:"managerId"`
	PayRate          float64                      `json:"payRate,omitempty"`
	StartDate        string                       `json:"startDate,omitempty"`
	StartTime        string                       `json:"startTime,omitempty"`
	HiredAt          time.Time                    `json:"hiredAt"`
	CreatedAt        time.Time                    `json:"createdAt"`

	// ActivationCode is the cleartext one-time login code. It is set when the
	// record is created or its unactivated account gets a new code, and is
	// never persisted.
	ActivationCode string `json:"-"`
}

// RoleEmployee is the only role granted to materialized accounts.
const RoleEmployee = "employee"

// UserAccount is the login created alongside an employee record.
type UserAccount struct {
	ID             id.UserID         `json:"id"`
	OrganizationID id.OrganizationID `json:"organizationId"`
	EmployeeID     id.EmployeeID     `json:"employeeId"`
	Email          string            `json:"email"`
	Role           string            `json:"role"`
	ActivationHash string            `json:"-"`
	ActivatedAt    *time.Time        `json:"activatedAt,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}
