// Package notify delivers workflow notifications to applicants, managers
// and HR. Delivery is asynchronous and never fails a workflow transition.
package notify

import (
	"context"
	"time"
)

// Kind names the message template a relay renders.
type Kind string

const (
	KindNewHireAlert           Kind = "new-hire-alert"
	KindAccessCodeDelivery     Kind = "access-code-delivery"
	KindEditRequest            Kind = "edit-request"
	KindApproval               Kind = "approval"
	KindRejection              Kind = "rejection"
	KindResubmission           Kind = "resubmission"
	KindMaterializationFailure Kind = "materialization-failure"
)

// Recipient roles.
const (
	RoleApplicant = "applicant"
	RoleManager   = "manager"
	RoleHR        = "hr"
)

// Recipient addresses a person or a role mailbox within an organization.
type Recipient struct {
	OrganizationID string `json:"organizationId"`
	Role           string `json:"role"`
	UserID         string `json:"userId,omitempty"`
	Email          string `json:"email,omitempty"`
	Name           string `json:"name,omitempty"`
}

// Key partitions deliveries so one recipient's messages stay ordered.
func (r Recipient) Key() string {
	switch {
	case r.UserID != "":
		return r.OrganizationID + "/" + r.UserID
	case r.Email != "":
		return r.OrganizationID + "/" + r.Email
	default:
		return r.OrganizationID + "/" + r.Role
	}
}

// Notification is one message for one recipient.
type Notification struct {
	Recipient Recipient         `json:"recipient"`
	Kind      Kind              `json:"kind"`
	SessionID string            `json:"sessionId,omitempty"`
	Payload   map[string]string `json:"payload,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Relay delivers a notification synchronously.
type Relay interface {
	Notify(ctx context.Context, n Notification) error
}

// RelayFunc adapts a function to Relay.
type RelayFunc func(ctx context.Context, n Notification) error

func (f RelayFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}
