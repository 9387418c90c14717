package models

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	onboarding "github.com/gramv/onboardingsoftware-sub000/internal/onboarding/models"
	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
)

// DefaultPayRateFloor is the federal minimum wage.
const DefaultPayRateFloor = 7.25

const dateLayout = "2006-01-02"

var startTimePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Status is the lifecycle state of a job application.
type Status string

const (
	StatusPending  Status = "pending"
	StatusReviewed Status = "reviewed"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusReviewed, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsOpen reports whether a hiring decision is still outstanding.
func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusReviewed
}

// Applicant identifies the person applying.
type Applicant struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

// JobApplication is a candidate's application to a property.
//
// Invariants:
//   - Status moves pending -> reviewed -> approved|rejected, and pending may
//     be decided directly
//   - SessionID is set only once the application is approved
type JobApplication struct {
	ID             id.ApplicationID  `json:"id"`
	OrganizationID id.OrganizationID `json:"organizationId"`
	Applicant      Applicant         `json:"applicant"`
	Position       string            `json:"position"`
	Department     string            `json:"department,omitempty"`
	Status         Status            `json:"status"`
	Offer          *JobOffer         `json:"offer,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	ReviewedBy     *id.UserID        `json:"reviewedBy,omitempty"`
	ReviewedAt     *time.Time        `json:"reviewedAt,omitempty"`
	SessionID      *id.SessionID     `json:"sessionId,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	Version        int64             `json:"-"`
}

// NewApplication builds a pending application from a validated request.
func NewApplication(orgID id.OrganizationID, req SubmitRequest, now time.Time) (*JobApplication, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if orgID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "organization is required")
	}
	return &JobApplication{
		ID:             id.NewApplicationID(),
		OrganizationID: orgID,
		Applicant: Applicant{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Phone:     req.Phone,
		},
		Position:   req.Position,
		Department: req.Department,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// CanMarkReviewed fails with CodeConflict when the application has already
// moved on.
func (a *JobApplication) CanMarkReviewed() error {
	if a.Status != StatusPending {
		return dErrors.New(dErrors.CodeConflict, "application is already "+string(a.Status))
	}
	return nil
}

// CanDecide fails with CodeConflict once a decision has been recorded.
func (a *JobApplication) CanDecide() error {
	if !a.Status.IsOpen() {
		return dErrors.New(dErrors.CodeConflict, "application is already "+string(a.Status))
	}
	return nil
}

func (a *JobApplication) stamp(status Status, reviewer id.UserID, now time.Time) {
	at := now
	by := reviewer
	a.Status = status
	a.ReviewedBy = &by
	a.ReviewedAt = &at
	a.UpdatedAt = now
}

// ApplyReviewed marks the application as seen by a manager.
func (a *JobApplication) ApplyReviewed(reviewer id.UserID, now time.Time) {
	a.stamp(StatusReviewed, reviewer, now)
}

// ApplyRejection records a rejection with the reviewer's notes.
func (a *JobApplication) ApplyRejection(reviewer id.UserID, notes string, now time.Time) {
	a.stamp(StatusRejected, reviewer, now)
	a.Notes = notes
}

// ApplyApproval records the accepted offer.
func (a *JobApplication) ApplyApproval(reviewer id.UserID, offer JobOffer, now time.Time) {
	a.stamp(StatusApproved, reviewer, now)
	a.Offer = &offer
}

// Clone returns a deep copy.
func (a *JobApplication) Clone() *JobApplication {
	out := *a
	if a.Offer != nil {
		offer := *a.Offer
		out.Offer = &offer
	}
	if a.ReviewedBy != nil {
		by := *a.ReviewedBy
		out.ReviewedBy = &by
	}
	if a.ReviewedAt != nil {
		at := *a.ReviewedAt
		out.ReviewedAt = &at
	}
	if a.SessionID != nil {
		sid := *a.SessionID
		out.SessionID = &sid
	}
	return &out
}

// SubmitRequest is the public application form.
type SubmitRequest struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	Position   string `json:"position"`
	Department string `json:"department,omitempty"`
}

func (r *SubmitRequest) Normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	r.Position = strings.TrimSpace(r.Position)
	r.Department = strings.TrimSpace(r.Department)
}

func (r *SubmitRequest) Validate() error {
	fields := map[string]string{}
	if r.FirstName == "" {
		fields["firstName"] = "is required"
	}
	if r.LastName == "" {
		fields["lastName"] = "is required"
	}
	if _, err := mail.ParseAddress(r.Email); err != nil || r.Email == "" {
		fields["email"] = "must be a valid email address"
	}
	if r.Position == "" {
		fields["position"] = "is required"
	}
	if len(fields) > 0 {
		return dErrors.WithFields(dErrors.CodeValidation, "invalid application", fields)
	}
	return nil
}

// JobOffer is the offer a reviewer attaches when approving.
type JobOffer struct {
	PayRate             float64            `json:"payRate"`
	StartDate           string             `json:"startDate"`
	StartTime           string             `json:"startTime,omitempty"`
	SupervisorID        id.UserID          `json:"supervisorId"`
	SpecialInstructions string             `json:"specialInstructions,omitempty"`
	Delivery            onboarding.Delivery `json:"delivery"`
}

func (o *JobOffer) Normalize() {
	o.StartDate = strings.TrimSpace(o.StartDate)
	o.StartTime = strings.TrimSpace(o.StartTime)
	o.SpecialInstructions = strings.TrimSpace(o.SpecialInstructions)
	o.Delivery = onboarding.Delivery(strings.ToLower(strings.TrimSpace(string(o.Delivery))))
	if o.Delivery == "" {
		o.Delivery = onboarding.DeliveryRemote
	}
}

// Validate checks the offer against the pay floor and the calendar day of
// now. A zero floor means DefaultPayRateFloor.
func (o *JobOffer) Validate(now time.Time, floor float64) error {
	if floor <= 0 {
		floor = DefaultPayRateFloor
	}
	fields := map[string]string{}
	if o.PayRate < floor {
		fields["payRate"] = "must be at least the minimum pay rate"
	}
	if start, err := time.ParseInLocation(dateLayout, o.StartDate, now.Location()); err != nil {
		fields["startDate"] = "must be a date formatted YYYY-MM-DD"
	} else {
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		if start.Before(today) {
			fields["startDate"] = "must be today or later"
		}
	}
	if o.StartTime != "" && !startTimePattern.MatchString(o.StartTime) {
		fields["startTime"] = "must be formatted HH:MM"
	}
	if _, ok := o.Delivery.TokenKind(); !ok {
		fields["delivery"] = "must be walk_in or remote"
	}
	if len(fields) > 0 {
		return dErrors.WithFields(dErrors.CodeValidation, "invalid job offer", fields)
	}
	return nil
}

// Offer converts the job offer into the terms carried by the onboarding
// session.
func (o JobOffer) Offer() *onboarding.Offer {
	return &onboarding.Offer{
		PayRate:             o.PayRate,
		StartDate:           o.StartDate,
		StartTime:           o.StartTime,
		SupervisorID:        o.SupervisorID,
		SpecialInstructions: o.SpecialInstructions,
	}
}

// ListFilter narrows application listings.
type ListFilter struct {
	Statuses []Status
	Limit    int
}
