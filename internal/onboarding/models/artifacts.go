package models

import (
	"time"

	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
)

// DocumentType is the kind of identity or employment document uploaded.
type DocumentType string

const (
	DocUSPassport              DocumentType = "us_passport"
	DocPermanentResidentCard   DocumentType = "permanent_resident_card"
	DocEmploymentAuthorization DocumentType = "employment_authorization_document"
	DocDriversLicense          DocumentType = "drivers_license"
	DocStateID                 DocumentType = "state_id"
	DocSocialSecurityCard      DocumentType = "social_security_card"
	DocBirthCertificate        DocumentType = "birth_certificate"
	DocVoidedCheck             DocumentType = "voided_check"
)

// I9List classifies a document against Form I-9 lists A, B and C. Documents
// outside the I-9 lists return the empty string.
func (t DocumentType) I9List() string {
	switch t {
	case DocUSPassport, DocPermanentResidentCard, DocEmploymentAuthorization:
		return "A"
	case DocDriversLicense, DocStateID:
		return "B"
	case DocSocialSecurityCard, DocBirthCertificate:
		return "C"
	}
	return ""
}

func (t DocumentType) IsValid() bool {
	return t.I9List() != "" || t == DocVoidedCheck
}

// Document describes an uploaded file. Raw bytes live in document storage.
type Document struct {
	ID          id.DocumentID     `json:"id"`
	Type        DocumentType      `json:"type"`
	Filename    string            `json:"filename"`
	ContentType string            `json:"contentType"`
	Size        int64             `json:"size"`
	StorageKey  string            `json:"storageKey"`
	UploadedAt  time.Time         `json:"uploadedAt"`
	OCR         map[string]string `json:"ocr,omitempty"`
}

// Signature is a captured signature image.
type Signature struct {
	Data       string    `json:"data"`
	Format     string    `json:"format"`
	SignerName string    `json:"signerName,omitempty"`
	SignedAt   time.Time `json:"signedAt"`
	IPAddress  string    `json:"ipAddress,omitempty"`
}

// EditRequest is a reviewer's request to change one field of a section.
type EditRequest struct {
	ID              id.EditRequestID `json:"id"`
	Section         StepKey          `json:"section"`
	Field           string           `json:"field"`
	CurrentValue    string           `json:"currentValue,omitempty"`
	RequestedChange string           `json:"requestedChange,omitempty"`
	Reason          string           `json:"reason"`
	RequestedBy     id.UserID        `json:"requestedBy"`
	RequestedRole   Role             `json:"requestedRole"`
	CreatedAt       time.Time        `json:"createdAt"`
	ResolvedAt      *time.Time       `json:"resolvedAt,omitempty"`
}

// ListFilter narrows reviewer listings.
type ListFilter struct {
	Statuses []Status
	Limit    int
}
