package notify

import (
	"context"
	"log/slog"
)

// LogRelay writes notifications to the structured log. It is the relay of
// record when no broker is configured.
type LogRelay struct {
	logger *slog.Logger
}

func NewLogRelay(logger *slog.Logger) *LogRelay {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRelay{logger: logger}
}

func (l *LogRelay) Notify(ctx context.Context, n Notification) error {
	l.logger.InfoContext(ctx, "notification",
		"log_type", "notification",
		"kind", n.Kind,
		"recipient_role", n.Recipient.Role,
		"recipient_user_id", n.Recipient.UserID,
		"organization_id", n.Recipient.OrganizationID,
		"session_id", n.SessionID,
	)
	return nil
}
