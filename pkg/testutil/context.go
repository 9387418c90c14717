package testutil

import (
	"net/http"

	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	"github.com/gramv/onboardingsoftware-sub000/pkg/requestcontext"
)

// NewReviewer builds a reviewer identity in a fresh organization.
func NewReviewer(role requestcontext.Role) requestcontext.ReviewerIdentity {
	return requestcontext.ReviewerIdentity{
		UserID:         id.NewUserID(),
		OrganizationID: id.NewOrganizationID(),
		Role:           role,
		Name:           "Test " + string(role),
	}
}

// WithReviewer adds a reviewer identity to the request context, as the
// bearer middleware would after validating a token.
func WithReviewer(req *http.Request, reviewer requestcontext.ReviewerIdentity) *http.Request {
	return req.WithContext(requestcontext.WithReviewer(req.Context(), reviewer))
}

// WithBearer sets the Authorization header.
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}
