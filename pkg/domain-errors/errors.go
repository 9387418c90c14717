// Package domainerrors defines coded errors shared by services and transports.
//
// Services return *Error values carrying a Code; transports translate the Code
// into a status and a client-safe body. Stores should not construct these
// directly and instead return pkg/platform/sentinel errors.
package domainerrors

import (
	"errors"
	"maps"
)

// Code identifies a class of failure. The string value is the wire code.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeInvariantViolation Code = "invariant_violation"
	CodeTimeout            Code = "timeout"
	CodeRateLimited        Code = "rate_limit_exceeded"
	CodeInternal           Code = "internal_error"

	// Onboarding workflow codes.
	CodeTokenInvalid          Code = "token_invalid"
	CodeTokenExpired          Code = "token_expired"
	CodeStepValidationFailed  Code = "step_validation_failed"
	CodeIllegalTransition     Code = "illegal_transition"
	CodeReviewerNotesRequired Code = "reviewer_notes_required"
	CodeMaterializationFailed Code = "materialization_failed"
)

// Error is a coded domain error. Fields carries per-field messages for
// validation failures and is nil otherwise.
type Error struct {
	Code    Code
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// WithFields creates a coded error carrying field-keyed messages.
func WithFields(code Code, msg string, fields map[string]string) *Error {
	return &Error{Code: code, Message: msg, Fields: maps.Clone(fields)}
}

// HasCode reports whether any error in err's chain is an *Error with code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is shorthand for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// FieldsOf returns the field messages of the first *Error in err's chain.
func FieldsOf(err error) map[string]string {
	var de *Error
	if errors.As(err, &de) {
		return de.Fields
	}
	return nil
}
