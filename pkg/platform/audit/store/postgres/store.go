package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gramv/onboardingsoftware-sub000/internal/platform/postgres"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/audit"
)

// Store appends audit events to the audit_events table. Inside a
// transaction started by the TransactionManager the insert joins it.
type Store struct {
	db postgres.Queryer
}

func New(db postgres.Queryer) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	attributes, err := json.Marshal(event.Attributes)
	if err != nil {
		return fmt.Errorf("marshal audit attributes: %w", err)
	}
	_, err = postgres.QueryerFromContext(ctx, s.db).Exec(ctx, `
		INSERT INTO audit_events
			(id, action, subject_id, organization_id, actor_id, actor_role, request_id, attributes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		event.ID.String(), event.Action, event.SubjectID, event.OrganizationID,
		event.ActorID, event.ActorRole, event.RequestID, attributes, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", postgres.TranslateError(err))
	}
	return nil
}

// ListBySubject returns a subject's events, oldest first.
func (s *Store) ListBySubject(ctx context.Context, subjectID string) ([]audit.Event, error) {
	rows, err := postgres.QueryerFromContext(ctx, s.db).Query(ctx, `
		SELECT id, action, subject_id, organization_id, actor_id, actor_role, request_id, attributes, created_at
		FROM audit_events WHERE subject_id = $1
		ORDER BY created_at ASC`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var (
			event      audit.Event
			attributes []byte
		)
		if err := rows.Scan(&event.ID, &event.Action, &event.SubjectID, &event.OrganizationID,
			&event.ActorID, &event.ActorRole, &event.RequestID, &attributes, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if len(attributes) > 0 {
			if err := json.Unmarshal(attributes, &event.Attributes); err != nil {
				return nil, fmt.Errorf("decode audit attributes: %w", err)
			}
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}
