// Package steps defines the ordered onboarding steps, their validators and
// the progression rules applied to a session.
package steps

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/models"
	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
)

// Definition describes one step in the canonical sequence.
type Definition struct {
	Key      models.StepKey
	Title    string
	Optional bool
	stage    stageFunc
}

// StageContext carries request values a step may stamp into the session.
type StageContext struct {
	Now      time.Time
	ClientIP string
}

// Mutation writes a validated step payload into a session.
type Mutation func(*models.Session)

type stageFunc func(sess *models.Session, raw json.RawMessage, sc StageContext) (Mutation, map[string]string)

var sequence = []Definition{
	{Key: models.StepLanguage, Title: "Language", Optional: true, stage: stageLanguage},
	{Key: models.StepVerify, Title: "Identity verification", stage: stageVerify},
	{Key: models.StepPersonal, Title: "Personal information", stage: stagePersonal},
	{Key: models.StepEmergencyContact, Title: "Emergency contact", Optional: true, stage: stageEmergencyContact},
	{Key: models.StepDocuments, Title: "Documents", stage: stageDocuments},
	{Key: models.StepI9, Title: "Form I-9", stage: stageI9},
	{Key: models.StepW4, Title: "Form W-4", stage: stageW4},
	{Key: models.StepHandbook, Title: "Employee handbook", stage: stageHandbook},
	{Key: models.StepSignature, Title: "Signature", stage: stageSignature},
	{Key: models.StepReview, Title: "Review and submit"},
}

// All returns the canonical step sequence.
func All() []Definition {
	return slices.Clone(sequence)
}

// First is the step a new session starts on.
func First() models.StepKey {
	return sequence[0].Key
}

// Total is the number of canonical steps.
func Total() int {
	return len(sequence)
}

// Lookup returns the definition for key.
func Lookup(key models.StepKey) (Definition, bool) {
	for _, d := range sequence {
		if d.Key == key {
			return d, true
		}
	}
	return Definition{}, false
}

// IsKnown reports whether key is a canonical step.
func IsKnown(key models.StepKey) bool {
	_, ok := Lookup(key)
	return ok
}

// IsEditable reports whether reviewers may flag key for changes.
func IsEditable(key models.StepKey) bool {
	return IsKnown(key) && key != models.StepReview
}

func index(key models.StepKey) int {
	return slices.IndexFunc(sequence, func(d Definition) bool { return d.Key == key })
}

// Stage validates raw as the payload for step key against sess and returns
// the mutation that applies it. Validation failures carry a field-keyed map
// and leave sess untouched.
func Stage(sess *models.Session, key models.StepKey, raw json.RawMessage, sc StageContext) (Mutation, error) {
	def, ok := Lookup(key)
	if !ok {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown step "+string(key))
	}
	if def.stage == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "step "+string(key)+" is completed by submitting the session")
	}
	apply, fields := def.stage(sess, raw, sc)
	if len(fields) > 0 {
		return nil, dErrors.WithFields(dErrors.CodeStepValidationFailed, "step validation failed", fields)
	}
	return func(s *models.Session) {
		apply(s)
		s.MarkStepCompleted(key, false, sc.Now)
	}, nil
}

// Progress is completed canonical steps over total, as a percentage.
// Review only completes on submission, so 100 means submitted or later.
func Progress(sess *models.Session) int {
	completed := 0
	for _, d := range sequence {
		if sess.IsStepCompleted(d.Key) {
			completed++
		}
	}
	pct := completed * 100 / len(sequence)
	return max(0, min(100, pct))
}

// CanJump reports whether every step strictly before target is complete.
func CanJump(sess *models.Session, target models.StepKey) bool {
	i := index(target)
	if i < 0 {
		return false
	}
	for _, d := range sequence[:i] {
		if !sess.IsStepCompleted(d.Key) {
			return false
		}
	}
	return true
}

// NextIncomplete returns the first incomplete step after from, wrapping to
// the earliest incomplete step, and review when everything else is done.
func NextIncomplete(sess *models.Session, from models.StepKey) models.StepKey {
	start := index(from) + 1
	for _, d := range sequence[start:] {
		if d.Key != models.StepReview && !sess.IsStepCompleted(d.Key) {
			return d.Key
		}
	}
	for _, d := range sequence[:start] {
		if d.Key != models.StepReview && !sess.IsStepCompleted(d.Key) {
			return d.Key
		}
	}
	return models.StepReview
}

// Missing lists required steps that block submission.
func Missing(sess *models.Session) map[string]string {
	missing := map[string]string{}
	for _, d := range sequence {
		if d.Key == models.StepReview {
			continue
		}
		if !sess.IsStepCompleted(d.Key) {
			missing[string(d.Key)] = "step is not complete"
		}
	}
	return missing
}

// Skip marks an optional step complete without data.
func Skip(key models.StepKey, now time.Time) (Mutation, error) {
	def, ok := Lookup(key)
	if !ok {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown step "+string(key))
	}
	if !def.Optional {
		return nil, dErrors.WithFields(dErrors.CodeStepValidationFailed, "step cannot be skipped",
			map[string]string{string(key): "step is required"})
	}
	return func(s *models.Session) {
		s.MarkStepCompleted(key, true, now)
	}, nil
}
