package models

import (
	"encoding/json"
	"maps"
)

// StepKey names a step in the canonical onboarding sequence.
type StepKey string

const (
	StepLanguage         StepKey = "language"
	StepVerify           StepKey = "verify"
	StepPersonal         StepKey = "personal"
	StepEmergencyContact StepKey = "emergency_contact"
	StepDocuments        StepKey = "documents"
	StepI9               StepKey = "i9"
	StepW4               StepKey = "w4"
	StepHandbook         StepKey = "handbook"
	StepSignature        StepKey = "signature"
	StepReview           StepKey = "review"
)

// FormData holds one typed section per data-bearing step. A step submission
// replaces its own section and leaves the others untouched.
type FormData struct {
	Language         *LanguageSection        `json:"language,omitempty"`
	Verification     *VerificationSection    `json:"verify,omitempty"`
	Personal         *PersonalInfo           `json:"personal,omitempty"`
	EmergencyContact *EmergencyContact       `json:"emergency_contact,omitempty"`
	I9               *I9Section              `json:"i9,omitempty"`
	W4               *W4Section              `json:"w4,omitempty"`
	Handbook         *HandbookAcknowledgment `json:"handbook,omitempty"`
	// Extra keeps unrecognized client fields for forward compatibility.
	Extra map[string]json.RawMessage `json:"extra,omitempty"`
}

type LanguageSection struct {
	Code string `json:"code"`
}

type VerificationSection struct {
	DateOfBirth string `json:"dateOfBirth"`
	SSNLastFour string `json:"ssnLastFour"`
}

type Address struct {
	Street string `json:"street"`
	Unit   string `json:"unit,omitempty"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

type PersonalInfo struct {
	FirstName     string  `json:"firstName"`
	MiddleInitial string  `json:"middleInitial,omitempty"`
	LastName      string  `json:"lastName"`
	PreferredName string  `json:"preferredName,omitempty"`
	Email         string  `json:"email"`
	Phone         string  `json:"phone"`
	Address       Address `json:"address"`
}

type EmergencyContact struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Phone        string `json:"phone"`
}

// Citizenship statuses accepted on Form I-9 section 1.
const (
	CitizenshipCitizen            = "citizen"
	CitizenshipNoncitizenNational = "noncitizen_national"
	CitizenshipPermanentResident  = "permanent_resident"
	CitizenshipAuthorizedAlien    = "authorized_alien"
)

type I9Section struct {
	CitizenshipStatus       string `json:"citizenshipStatus"`
	AlienNumber             string `json:"alienNumber,omitempty"`
	WorkAuthorizationExpiry string `json:"workAuthorizationExpiry,omitempty"`
	Attestation             bool   `json:"attestation"`
}

// W-4 filing statuses.
const (
	FilingSingle          = "single"
	FilingMarriedJoint    = "married_joint"
	FilingHeadOfHousehold = "head_of_household"
)

type W4Section struct {
	FilingStatus     string  `json:"filingStatus"`
	MultipleJobs     bool    `json:"multipleJobs"`
	DependentsAmount float64 `json:"dependentsAmount"`
	OtherIncome      float64 `json:"otherIncome"`
	Deductions       float64 `json:"deductions"`
	ExtraWithholding float64 `json:"extraWithholding"`
}

type HandbookAcknowledgment struct {
	Acknowledged bool   `json:"acknowledged"`
	Version      string `json:"version,omitempty"`
}

// Clone returns a deep copy.
func (f FormData) Clone() FormData {
	out := FormData{Extra: maps.Clone(f.Extra)}
	if f.Language != nil {
		v := *f.Language
		out.Language = &v
	}
	if f.Verification != nil {
		v := *f.Verification
		out.Verification = &v
	}
	if f.Personal != nil {
		v := *f.Personal
		out.Personal = &v
	}
	if f.EmergencyContact != nil {
		v := *f.EmergencyContact
		out.EmergencyContact = &v
	}
	if f.I9 != nil {
		v := *f.I9
		out.I9 = &v
	}
	if f.W4 != nil {
		v := *f.W4
		out.W4 = &v
	}
	if f.Handbook != nil {
		v := *f.Handbook
		out.Handbook = &v
	}
	return out
}
