package models

import (
	"net/mail"
	"strings"

	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
)

// Delivery is how a candidate receives their onboarding credential.
type Delivery string

const (
	DeliveryWalkIn Delivery = "walk_in"
	DeliveryRemote Delivery = "remote"
)

// TokenKind maps the delivery channel to the credential shape: walk-ins type
// a short code on the tablet, remote hires follow a link.
func (d Delivery) TokenKind() (TokenKind, bool) {
	switch d {
	case DeliveryWalkIn:
		return TokenKindAccessCode, true
	case DeliveryRemote:
		return TokenKindBearer, true
	}
	return "", false
}

// IssueRequest opens an onboarding session for a hired candidate.
type IssueRequest struct {
	OrganizationID id.OrganizationID `json:"-"`
	ApplicationID  *id.ApplicationID `json:"applicationId,omitempty"`
	Candidate      Candidate         `json:"candidate"`
	ManagerID      id.UserID         `json:"-"`
	Offer          *Offer            `json:"offer,omitempty"`
	Delivery       Delivery          `json:"delivery"`
}

func (r *IssueRequest) Normalize() {
	r.Candidate.FirstName = strings.TrimSpace(r.Candidate.FirstName)
	r.Candidate.LastName = strings.TrimSpace(r.Candidate.LastName)
	r.Candidate.Email = strings.ToLower(strings.TrimSpace(r.Candidate.Email))
	r.Candidate.Phone = strings.TrimSpace(r.Candidate.Phone)
	r.Candidate.Position = strings.TrimSpace(r.Candidate.Position)
	r.Candidate.Department = strings.TrimSpace(r.Candidate.Department)
	if r.Delivery == "" {
		r.Delivery = DeliveryRemote
	}
}

func (r *IssueRequest) Validate() error {
	if r.OrganizationID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "organization is required")
	}
	if r.ManagerID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "manager is required")
	}
	if r.Candidate.FirstName == "" || r.Candidate.LastName == "" {
		return dErrors.New(dErrors.CodeValidation, "candidate first and last name are required")
	}
	if _, err := mail.ParseAddress(r.Candidate.Email); err != nil {
		return dErrors.New(dErrors.CodeValidation, "candidate email is invalid")
	}
	if r.Candidate.Position == "" {
		return dErrors.New(dErrors.CodeValidation, "position is required")
	}
	if _, ok := r.Delivery.TokenKind(); !ok {
		return dErrors.New(dErrors.CodeValidation, "delivery must be walk_in or remote")
	}
	return nil
}

// Decision is a reviewer's verdict on a submitted session.
type Decision string

const (
	DecisionApprove        Decision = "approve"
	DecisionReject         Decision = "reject"
	DecisionRequestChanges Decision = "request_changes"
)

// ActionFor maps a reviewer role and decision onto the transition table.
func ActionFor(role Role, d Decision) (Action, bool) {
	switch role {
	case RoleManager:
		switch d {
		case DecisionApprove:
			return ActionManagerApprove, true
		case DecisionReject:
			return ActionManagerReject, true
		case DecisionRequestChanges:
			return ActionManagerRequestChanges, true
		}
	case RoleHR:
		switch d {
		case DecisionApprove:
			return ActionHRApprove, true
		case DecisionReject:
			return ActionHRReject, true
		case DecisionRequestChanges:
			return ActionHRRequestChanges, true
		}
	}
	return "", false
}

// EditRequestInput flags one field a reviewer wants the applicant to change.
type EditRequestInput struct {
	Section         StepKey `json:"section"`
	Field           string  `json:"field"`
	CurrentValue    string  `json:"currentValue,omitempty"`
	RequestedChange string  `json:"requestedChange,omitempty"`
	Reason          string  `json:"reason"`
}

// ReviewRequest carries a reviewer decision.
type ReviewRequest struct {
	Decision     Decision           `json:"-"`
	Notes        string             `json:"notes"`
	EditRequests []EditRequestInput `json:"editRequests,omitempty"`
}

func (r *ReviewRequest) Normalize() {
	r.Notes = strings.TrimSpace(r.Notes)
	for i := range r.EditRequests {
		r.EditRequests[i].Field = strings.TrimSpace(r.EditRequests[i].Field)
		r.EditRequests[i].Reason = strings.TrimSpace(r.EditRequests[i].Reason)
	}
}
