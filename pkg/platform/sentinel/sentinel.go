// Package sentinel holds the errors stores return for facts about stored
// records. Services match them with errors.Is and translate them into
// coded domain errors; they never reach HTTP responses directly.
package sentinel

import "errors"

var (
	// ErrNotFound: no session, application, employee or account with that key.
	ErrNotFound = errors.New("not found")

	// ErrConflict: the record's version moved between read and write, or a
	// concurrent writer already holds the slot the record needs, such as a
	// candidate's live onboarding session.
	ErrConflict = errors.New("version conflict")

	// ErrAlreadyUsed: a unique key such as a token hash, employee number or
	// per-session employee record is already taken.
	ErrAlreadyUsed = errors.New("already used")

	// ErrInvalidState: the record cannot take the requested change, for
	// example activating an account twice.
	ErrInvalidState = errors.New("invalid state")
)
