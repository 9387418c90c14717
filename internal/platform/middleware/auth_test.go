package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gramv/onboardingsoftware-sub000/pkg/requestcontext"
	"github.com/gramv/onboardingsoftware-sub000/pkg/testutil"
)

type stubValidator struct {
	identity requestcontext.ReviewerIdentity
	err      error
}

func (s stubValidator) ValidateReviewerToken(string) (requestcontext.ReviewerIdentity, error) {
	return s.identity, s.err
}

func echoReviewer() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, string(requestcontext.Reviewer(r.Context()).Role))
	})
}

func TestRequireReviewer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hr := testutil.NewReviewer(requestcontext.RoleHR)

	t.Run("missing header", func(t *testing.T) {
		h := RequireReviewer(stubValidator{identity: hr}, logger)(echoReviewer())
		rr := testutil.DoRequest(h, testutil.NewJSONRequest(t, http.MethodGet, "/", nil))
		testutil.AssertError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("rejected token", func(t *testing.T) {
		h := RequireReviewer(stubValidator{err: errors.New("expired")}, logger)(echoReviewer())
		req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodGet, "/", nil), "stale")
		rr := testutil.DoRequest(h, req)
		body := testutil.AssertError(t, rr, http.StatusUnauthorized, "unauthorized")
		assert.Equal(t, "invalid or expired token", body.ErrorDescription)
	})

	t.Run("valid token populates context", func(t *testing.T) {
		h := RequireReviewer(stubValidator{identity: hr}, logger)(echoReviewer())
		req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodGet, "/", nil), "good")
		rr := testutil.DoRequest(h, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "hr", rr.Body.String())
	})
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(requestcontext.RoleHR)(echoReviewer())

	manager := testutil.WithReviewer(testutil.NewJSONRequest(t, http.MethodPost, "/", nil),
		testutil.NewReviewer(requestcontext.RoleManager))
	testutil.AssertError(t, testutil.DoRequest(h, manager), http.StatusForbidden, "forbidden")

	hr := testutil.WithReviewer(testutil.NewJSONRequest(t, http.MethodPost, "/", nil),
		testutil.NewReviewer(requestcontext.RoleHR))
	rr := testutil.DoRequest(h, hr)
	assert.Equal(t, http.StatusOK, rr.Code)

	anonymous := testutil.NewJSONRequest(t, http.MethodPost, "/", nil)
	testutil.AssertError(t, testutil.DoRequest(h, anonymous), http.StatusForbidden, "forbidden")
}
