package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
	"github.com/gramv/onboardingsoftware-sub000/pkg/requestcontext"
)

// Claims are the reviewer bearer token claims. The subject is the reviewer
// user id.
type Claims struct {
	OrganizationID string `json:"org"`
	Role           string `json:"role"`
	Name           string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTService signs and validates reviewer tokens (HS256). Token issuance
// normally lives in the identity provider; GenerateReviewerToken exists for
// local tooling and tests.
type JWTService struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

func NewJWTService(signingKey string, issuer string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		now:        time.Now,
	}
}

func (s *JWTService) GenerateReviewerToken(reviewer requestcontext.ReviewerIdentity, expiresIn time.Duration) (string, error) {
	now := s.now()
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		OrganizationID: reviewer.OrganizationID.String(),
		Role:           string(reviewer.Role),
		Name:           reviewer.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   reviewer.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return newToken.SignedString(s.signingKey)
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// ValidateReviewerToken validates the token and converts its claims into a
// reviewer identity.
func (s *JWTService) ValidateReviewerToken(tokenString string) (requestcontext.ReviewerIdentity, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return requestcontext.ReviewerIdentity{}, err
	}

	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return requestcontext.ReviewerIdentity{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	orgID, err := id.ParseOrganizationID(claims.OrganizationID)
	if err != nil {
		return requestcontext.ReviewerIdentity{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token organization")
	}
	role := requestcontext.Role(claims.Role)
	if !role.IsValid() {
		return requestcontext.ReviewerIdentity{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token role")
	}

	return requestcontext.ReviewerIdentity{
		UserID:         userID,
		OrganizationID: orgID,
		Role:           role,
		Name:           claims.Name,
	}, nil
}
