// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values and services read them, so services never
// import net/http to learn who is acting or what time it is.
//
// Usage in services (read values):
//
//	reviewer := requestcontext.Reviewer(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithReviewer(ctx, requestcontext.ReviewerIdentity{...})
package requestcontext

import (
	"context"
	"time"

	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
)

type (
	reviewerKey    struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

var (
	ContextKeyReviewer    = reviewerKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// Role is the reviewer role carried by a bearer token.
type Role string

const (
	RoleManager Role = "manager"
	RoleHR      Role = "hr"
)

func (r Role) IsValid() bool {
	return r == RoleManager || r == RoleHR
}

// ReviewerIdentity is the authenticated manager or HR user behind a request.
type ReviewerIdentity struct {
	UserID         id.UserID
	OrganizationID id.OrganizationID
	Role           Role
	Name           string
}

// -----------------------------------------------------------------------------
// Reviewer identity
// -----------------------------------------------------------------------------

// Reviewer retrieves the authenticated reviewer. The zero value means the
// request is not reviewer-authenticated.
func Reviewer(ctx context.Context) ReviewerIdentity {
	if r, ok := ctx.Value(ContextKeyReviewer).(ReviewerIdentity); ok {
		return r
	}
	return ReviewerIdentity{}
}

// WithReviewer injects a reviewer identity into the context.
func WithReviewer(ctx context.Context, reviewer ReviewerIdentity) context.Context {
	return context.WithValue(ctx, ContextKeyReviewer, reviewer)
}

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent)
// -----------------------------------------------------------------------------

func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return ctx
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() outside HTTP requests (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
