package steps

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/gramv/onboardingsoftware-sub000/internal/documents"
	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/models"
)

const (
	dateLayout     = "2006-01-02"
	minimumAge     = 14
	payloadField   = "_payload"
	signatureKey   = "employee"
	requiredMsg    = "is required"
	phoneDigitsMsg = "must contain 10 digits"
)

var (
	emailPattern   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	statePattern   = regexp.MustCompile(`^[A-Za-z]{2}$`)
	zipPattern     = regexp.MustCompile(`^\d{5}(-?\d{4})?$`)
	ssnLastFour    = regexp.MustCompile(`^\d{4}$`)
	alienPattern   = regexp.MustCompile(`^[Aa]?\d{7,9}$`)
	languageCodes  = map[string]bool{"en": true, "es": true, "fr": true, "ht": true, "zh": true, "vi": true}
	filingStatuses = map[string]bool{models.FilingSingle: true, models.FilingMarriedJoint: true, models.FilingHeadOfHousehold: true}
	citizenship    = map[string]bool{
		models.CitizenshipCitizen:            true,
		models.CitizenshipNoncitizenNational: true,
		models.CitizenshipPermanentResident:  true,
		models.CitizenshipAuthorizedAlien:    true,
	}
)

// decode reads a step payload into dst. An empty body decodes as {}.
func decode(raw json.RawMessage, dst any) map[string]string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return map[string]string{payloadField: "must be a JSON object for this step"}
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func validPhone(s string) bool {
	return len(digits(s)) == 10
}

func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	return t, err == nil
}

// age counts whole years between dob and now.
func age(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}

func stageLanguage(_ *models.Session, raw json.RawMessage, _ StageContext) (Mutation, map[string]string) {
	var in models.LanguageSection
	if errs := decode(raw, &in); errs != nil {
		return nil, errs
	}
	if !languageCodes[strings.ToLower(strings.TrimSpace(in.Code))] {
		return nil, map[string]string{"code": "must be one of en, es, fr, ht, zh, vi"}
	}
	return func(s *models.Session) { s.FormData.Language = &in }, nil
}

func stageVerify(_ *models.Session, raw json.RawMessage, sc StageContext) (Mutation, map[string]string) {
	var in models.VerificationSection
	if errs := decode(raw, &in); errs != nil {
		return nil, errs
	}
	errs := ValidateVerification(in, sc.Now)
	if len(errs) > 0 {
		return nil, errs
	}
	return func(s *models.Session) { s.FormData.Verification = &in }, nil
}

// ValidateVerification checks date of birth and SSN last four.
func ValidateVerification(in models.VerificationSection, now time.Time) map[string]string {
	errs := map[string]string{}
	if blank(in.DateOfBirth) {
		errs["dateOfBirth"] = requiredMsg
	} else if dob, ok := parseDate(in.DateOfBirth); !ok {
		errs["dateOfBirth"] = "must be a date formatted YYYY-MM-DD"
	} else if !dob.Before(now) {
		errs["dateOfBirth"] = "must be in the past"
	} else if age(dob, now) < minimumAge {
		errs["dateOfBirth"] = "applicant must be at least 14 years old"
	}
	if !ssnLastFour.MatchString(in.SSNLastFour) {
		errs["ssnLastFour"] = "must be exactly 4 digits"
	}
	return errs
}

func stagePersonal(_ *models.Session, raw json.RawMessage, _ StageContext) (Mutation, map[string]string) {
	var in models.PersonalInfo
	if errs := decode(raw, &in); errs != nil {
		return nil, errs
	}
	if errs := ValidatePersonal(in); len(errs) > 0 {
		return nil, errs
	}
	return func(s *models.Session) { s.FormData.Personal = &in }, nil
}

// ValidatePersonal checks name, contact and address fields.
func ValidatePersonal(in models.PersonalInfo) map[string]string {
	errs := map[string]string{}
	if blank(in.FirstName) {
		errs["firstName"] = requiredMsg
	}
	if blank(in.LastName) {
		errs["lastName"] = requiredMsg
	}
	switch {
	case blank(in.Email):
		errs["email"] = requiredMsg
	case !emailPattern.MatchString(strings.TrimSpace(in.Email)):
		errs["email"] = "must be a valid email address"
	}
	if !validPhone(in.Phone) {
		errs["phone"] = phoneDigitsMsg
	}
	if blank(in.Address.Street) {
		errs["address.street"] = requiredMsg
	}
	if blank(in.Address.City) {
		errs["address.city"] = requiredMsg
	}
	if !statePattern.MatchString(strings.TrimSpace(in.Address.State)) {
		errs["address.state"] = "must be a 2-letter state code"
	}
	if !zipPattern.MatchString(strings.TrimSpace(in.Address.Zip)) {
		errs["address.zip"] = "must be 5 or 9 digits"
	}
	return errs
}

func stageEmergencyContact(_ *models.Session, raw json.RawMessage, _ StageContext) (Mutation, map[string]string) {
	var in models.EmergencyContact
	if errs := decode(raw, &in); errs != nil {
		return nil, errs
	}
	errs := map[string]string{}
	if blank(in.Name) {
		errs["name"] = requiredMsg
	}
	if blank(in.Relationship) {
		errs["relationship"] = requiredMsg
	}
	if !validPhone(in.Phone) {
		errs["phone"] = phoneDigitsMsg
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return func(s *models.Session) { s.FormData.EmergencyContact = &in }, nil
}

// stageDocuments checks the uploaded set satisfies Form I-9: one List A
// document, or one List B plus one List C document.
func stageDocuments(sess *models.Session, _ json.RawMessage, _ StageContext) (Mutation, map[string]string) {
	lists := map[string]bool{}
	for _, d := range sess.Documents {
		lists[d.Type.I9List()] = true
	}
	if lists["A"] || (lists["B"] && lists["C"]) {
		return func(*models.Session) {}, nil
	}
	errs := map[string]string{}
	switch {
	case len(sess.Documents) == 0:
		errs["documents"] = "upload one List A document or one List B and one List C document"
	case lists["B"]:
		errs["documents"] = "a List C document is also required"
	case lists["C"]:
		errs["documents"] = "a List B document is also required"
	default:
		errs["documents"] = "no uploaded document establishes identity and work authorization"
	}
	return nil, errs
}

func stageI9(_ *models.Session, raw json.RawMessage, sc StageContext) (Mutation, map[string]string) {
	var in models.I9Section
	if errs := decode(raw, &in); errs != nil {
		return nil, errs
	}
	errs := map[string]string{}
	if !citizenship[in.CitizenshipStatus] {
		errs["citizenshipStatus"] = "must be citizen, noncitizen_national, permanent_resident or authorized_alien"
	}
	if in.CitizenshipStatus == models.CitizenshipPermanentResident {
		if blank(in.AlienNumber) {
			errs["alienNumber"] = "is required for permanent residents"
		} else if !alienPattern.MatchString(strings.TrimSpace(in.AlienNumber)) {
			errs["alienNumber"] = "must be 7 to 9 digits"
		}
	}
	if in.CitizenshipStatus == models.CitizenshipAuthorizedAlien {
		if blank(in.WorkAuthorizationExpiry) {
			errs["workAuthorizationExpiry"] = "is required for authorized aliens"
		} else if exp, ok := parseDate(in.WorkAuthorizationExpiry); !ok {
			errs["workAuthorizationExpiry"] = "must be a date formatted YYYY-MM-DD"
		} else if !exp.After(sc.Now) {
			errs["workAuthorizationExpiry"] = "must be in the future"
		}
	}
	if !in.Attestation {
		errs["attestation"] = "must be accepted"
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return func(s *models.Session) { s.FormData.I9 = &in }, nil
}

func stageW4(_ *models.Session, raw json.RawMessage, _ StageContext) (Mutation, map[string]string) {
	var in models.W4Section
	if errs := decode(raw, &in); errs != nil {
		return nil, errs
	}
	errs := map[string]string{}
	if !filingStatuses[in.FilingStatus] {
		errs["filingStatus"] = "must be single, married_joint or head_of_household"
	}
	for field, v := range map[string]float64{
		"dependentsAmount": in.DependentsAmount,
		"otherIncome":      in.OtherIncome,
		"deductions":       in.Deductions,
		"extraWithholding": in.ExtraWithholding,
	} {
		if v < 0 {
			errs[field] = "must not be negative"
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return func(s *models.Session) { s.FormData.W4 = &in }, nil
}

func stageHandbook(_ *models.Session, raw json.RawMessage, _ StageContext) (Mutation, map[string]string) {
	var in models.HandbookAcknowledgment
	if errs := decode(raw, &in); errs != nil {
		return nil, errs
	}
	if !in.Acknowledged {
		return nil, map[string]string{"acknowledged": "must be accepted"}
	}
	return func(s *models.Session) { s.FormData.Handbook = &in }, nil
}

type signaturePayload struct {
	SignatureData string `json:"signatureData"`
	SignerName    string `json:"signerName"`
}

func stageSignature(_ *models.Session, raw json.RawMessage, sc StageContext) (Mutation, map[string]string) {
	var in signaturePayload
	if errs := decode(raw, &in); errs != nil {
		return nil, errs
	}
	img, err := documents.ParseSignature(in.SignatureData)
	if err != nil {
		return nil, map[string]string{"signatureData": err.Error()}
	}
	sig := models.Signature{
		Data:       strings.TrimSpace(in.SignatureData),
		Format:     img.Format,
		SignerName: strings.TrimSpace(in.SignerName),
		SignedAt:   sc.Now,
		IPAddress:  sc.ClientIP,
	}
	return func(s *models.Session) {
		if s.Signatures == nil {
			s.Signatures = map[string]models.Signature{}
		}
		s.Signatures[signatureKey] = sig
	}, nil
}
