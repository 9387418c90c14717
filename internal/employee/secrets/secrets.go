package secrets

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"

	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
)

const (
	activationAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	activationLength   = 10
)

// GenerateActivationCode returns a one-time code a new employee types to set
// up their login.
func GenerateActivationCode() (string, error) {
	limit := big.NewInt(int64(len(activationAlphabet)))
	out := make([]byte, activationLength)
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("could not generate activation code: %w", err)
		}
		out[i] = activationAlphabet[n.Int64()]
	}
	return string(out), nil
}

// Hash creates a bcrypt hash of the provided secret.
func Hash(secret string) (string, error) {
	if secret == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "secret cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "secret is too long")
		}
		return "", fmt.Errorf("could not hash secret: %w", err)
	}
	return string(hashed), nil
}

// Verify checks if a plaintext secret matches a bcrypt hash.
func Verify(secret, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeInvalidInput, "invalid activation code")
		}
		return fmt.Errorf("could not verify secret: %w", err)
	}
	return nil
}
