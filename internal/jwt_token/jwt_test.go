package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
	"github.com/gramv/onboardingsoftware-sub000/pkg/requestcontext"
)

func newReviewer(role requestcontext.Role) requestcontext.ReviewerIdentity {
	return requestcontext.ReviewerIdentity{
		UserID:         id.NewUserID(),
		OrganizationID: id.OrganizationID(uuid.New()),
		Role:           role,
		Name:           "Dana Front Desk",
	}
}

func TestReviewerTokenRoundTrip(t *testing.T) {
	svc := NewJWTService("test-signing-key", "test-issuer")
	reviewer := newReviewer(requestcontext.RoleManager)

	token, err := svc.GenerateReviewerToken(reviewer, time.Hour)
	require.NoError(t, err)

	got, err := svc.ValidateReviewerToken(token)
	require.NoError(t, err)
	assert.Equal(t, reviewer, got)
}

func TestValidateToken_Rejections(t *testing.T) {
	svc := NewJWTService("test-signing-key", "test-issuer")

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.ValidateToken("invalid-token-string")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := svc.GenerateReviewerToken(newReviewer(requestcontext.RoleHR), -time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
		assert.Equal(t, "token has expired", err.Error())
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := NewJWTService("other-key", "test-issuer")
		token, err := other.GenerateReviewerToken(newReviewer(requestcontext.RoleHR), time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewJWTService("test-signing-key", "someone-else")
		token, err := other.GenerateReviewerToken(newReviewer(requestcontext.RoleHR), time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
	})

	t.Run("unknown role", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			OrganizationID: uuid.NewString(),
			Role:           "employee",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   uuid.NewString(),
				Issuer:    "test-issuer",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}).SignedString([]byte("test-signing-key"))
		require.NoError(t, err)

		_, err = svc.ValidateReviewerToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
