package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/models"
	"github.com/gramv/onboardingsoftware-sub000/internal/platform/postgres"
	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/sentinel"
)

const (
	sessionColumns = `payload, version`

	liveCandidateConstraint = "uq_onboarding_sessions_live_candidate"
)

// PostgresStore persists sessions as a JSONB document next to the columns
// used for lookups. Writes are compare-and-swap on version.
type PostgresStore struct {
	db postgres.Queryer
	tx *postgres.TransactionManager
}

func NewPostgresStore(db postgres.Queryer, tx *postgres.TransactionManager) *PostgresStore {
	return &PostgresStore{db: db, tx: tx}
}

func (s *PostgresStore) q(ctx context.Context) postgres.Queryer {
	return postgres.QueryerFromContext(ctx, s.db)
}

func (s *PostgresStore) Create(ctx context.Context, sess *models.Session) error {
	sess.Version = 1
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = s.q(ctx).Exec(ctx, `
		INSERT INTO onboarding_sessions
			(id, organization_id, application_id, candidate_email, token_hash, status, expires_at, created_at, updated_at, version, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sess.ID.String(), sess.OrganizationID.String(), applicationIDArg(sess.ApplicationID),
		sess.Candidate.NormalizedEmail(), sess.TokenHash, string(sess.Status),
		sess.ExpiresAt, sess.CreatedAt, sess.UpdatedAt, sess.Version, payload,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == liveCandidateConstraint {
			return fmt.Errorf("candidate already has a live session: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert session: %w", postgres.TranslateError(err))
	}
	return nil
}

// LockCandidate takes a transaction-scoped advisory lock keyed by the
// candidate. Postgres releases it at commit or rollback, so release is a
// no-op. Outside a transaction the lock lasts only for the statement and the
// live-session index is the only guard.
func (s *PostgresStore) LockCandidate(ctx context.Context, orgID id.OrganizationID, email string) (func(), error) {
	key := orgID.String() + "|" + strings.ToLower(strings.TrimSpace(email))
	if _, err := s.q(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return nil, fmt.Errorf("lock candidate: %w", err)
	}
	return func() {}, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	row := s.q(ctx).QueryRow(ctx, `SELECT `+sessionColumns+` FROM onboarding_sessions WHERE id = $1`, sessionID.String())
	return scanSession(row)
}

func (s *PostgresStore) FindByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	row := s.q(ctx).QueryRow(ctx, `SELECT `+sessionColumns+` FROM onboarding_sessions WHERE token_hash = $1`, tokenHash)
	return scanSession(row)
}

func (s *PostgresStore) ListByCandidate(ctx context.Context, orgID id.OrganizationID, email string) ([]*models.Session, error) {
	rows, err := s.q(ctx).Query(ctx, `
		SELECT `+sessionColumns+` FROM onboarding_sessions
		WHERE organization_id = $1 AND candidate_email = $2
		ORDER BY created_at DESC`,
		orgID.String(), strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("list sessions by candidate: %w", err)
	}
	return collectSessions(rows)
}

func (s *PostgresStore) ListByOrganization(ctx context.Context, orgID id.OrganizationID, filter models.ListFilter) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM onboarding_sessions WHERE organization_id = $1`
	args := []any{orgID.String()}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, statuses)
		query += fmt.Sprintf(` AND status = ANY($%d)`, len(args))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions by organization: %w", err)
	}
	return collectSessions(rows)
}

// Execute locks the row, validates and mutates the decoded session, and
// writes it back guarded by the version read under the lock.
func (s *PostgresStore) Execute(ctx context.Context, sessionID id.SessionID, validate func(*models.Session) error, mutate func(*models.Session)) (*models.Session, error) {
	var result *models.Session
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		q := s.q(ctx)
		row := q.QueryRow(ctx, `SELECT `+sessionColumns+` FROM onboarding_sessions WHERE id = $1 FOR UPDATE`, sessionID.String())
		sess, err := scanSession(row)
		if err != nil {
			return err
		}
		if validate != nil {
			if err := validate(sess); err != nil {
				return err
			}
		}
		mutate(sess)

		expected := sess.Version
		sess.Version = expected + 1
		payload, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		tag, err := q.Exec(ctx, `
			UPDATE onboarding_sessions
			SET status = $2, updated_at = $3, version = $4, payload = $5
			WHERE id = $1 AND version = $6`,
			sessionID.String(), string(sess.Status), sess.UpdatedAt, sess.Version, payload, expected)
		if err != nil {
			return fmt.Errorf("update session: %w", postgres.TranslateError(err))
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("session %s changed concurrently: %w", sessionID, sentinel.ErrConflict)
		}
		result = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var (
		payload []byte
		version int64
	)
	if err := row.Scan(&payload, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	var sess models.Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("decode session payload: %w", err)
	}
	sess.Version = version
	return &sess, nil
}

func collectSessions(rows pgx.Rows) ([]*models.Session, error) {
	defer rows.Close()
	var out []*models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

func applicationIDArg(appID *id.ApplicationID) any {
	if appID == nil {
		return nil
	}
	return appID.String()
}
