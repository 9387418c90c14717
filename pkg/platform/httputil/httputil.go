// Package httputil writes JSON responses and translates coded domain errors
// into HTTP statuses.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// invalidTokenDescription is shared by unknown and expired onboarding tokens
// so clients cannot tell the two apart.
const invalidTokenDescription = "access token is invalid or expired"

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error            string            `json:"error"`
	ErrorDescription string            `json:"error_description,omitempty"`
	Fields           map[string]string `json:"fields,omitempty"`
}

// StatusFor maps a domain error code to an HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput, dErrors.CodeValidation,
		dErrors.CodeReviewerNotesRequired, dErrors.CodeInvariantViolation:
		return http.StatusBadRequest
	case dErrors.CodeStepValidationFailed:
		return http.StatusUnprocessableEntity
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeIllegalTransition:
		return http.StatusConflict
	case dErrors.CodeUnauthorized, dErrors.CodeTokenInvalid, dErrors.CodeTokenExpired:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err as a JSON error body. Internal errors never expose
// their message.
func WriteError(w http.ResponseWriter, err error) {
	var de *dErrors.Error
	if !errors.As(err, &de) {
		de = dErrors.New(dErrors.CodeInternal, "internal error")
	}

	resp := ErrorResponse{Error: string(de.Code), ErrorDescription: de.Message}
	switch de.Code {
	case dErrors.CodeInternal:
		resp.ErrorDescription = ""
	case dErrors.CodeTokenInvalid, dErrors.CodeTokenExpired:
		resp.Error = "invalid_token"
		resp.ErrorDescription = invalidTokenDescription
	case dErrors.CodeStepValidationFailed, dErrors.CodeValidation:
		resp.Fields = de.Fields
	}

	WriteJSON(w, StatusFor(de.Code), resp)
}

// WriteJSON renders v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeJSON decodes a bounded JSON body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	return decodeJSON(r, dst, false)
}

// DecodeOptionalJSON is DecodeJSON for endpoints whose body may be omitted.
// An empty body leaves dst untouched, whatever the Content-Length says.
func DecodeOptionalJSON(r *http.Request, dst any) error {
	return decodeJSON(r, dst, true)
}

func decodeJSON(r *http.Request, dst any, optional bool) error {
	if r.Body == nil || r.Body == http.NoBody {
		if optional {
			return nil
		}
		return dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}
