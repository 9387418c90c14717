package notify

import (
	"context"

	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/audit"
)

// AuditRelay writes a notification_dispatched event for every delivery
// attempt. Payloads stay out of the trail because they carry access and
// activation codes.
type AuditRelay struct {
	recorder *audit.Recorder
}

func NewAuditRelay(recorder *audit.Recorder) *AuditRelay {
	return &AuditRelay{recorder: recorder}
}

func (a *AuditRelay) Notify(ctx context.Context, n Notification) error {
	a.recorder.Record(ctx, "notification_dispatched",
		"session_id", n.SessionID,
		"organization_id", n.Recipient.OrganizationID,
		"kind", string(n.Kind),
		"recipient_role", string(n.Recipient.Role),
	)
	return nil
}
