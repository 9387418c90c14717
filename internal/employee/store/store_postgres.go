package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gramv/onboardingsoftware-sub000/internal/employee/models"
	"github.com/gramv/onboardingsoftware-sub000/internal/platform/postgres"
	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/sentinel"
)

// PostgresStore persists employees in PostgreSQL. The unique constraint on
// employees.session_id makes CreateForSession idempotent.
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

func (s *PostgresStore) CreateForSession(ctx context.Context, rec *models.Record, account *models.UserAccount) (*models.Record, bool, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, false, fmt.Errorf("marshal employee: %w", err)
	}

	var (
		out     *models.Record
		created bool
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		q := s.q(ctx)
		tag, err := q.Exec(ctx, `
			INSERT INTO employees (id, organization_id, session_id, employee_number, email, created_at, payload)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (session_id) DO NOTHING`,
			rec.ID.String(), rec.OrganizationID.String(), rec.SessionID.String(),
			rec.EmployeeNumber, rec.Email, rec.CreatedAt, payload)
		if err != nil {
			return fmt.Errorf("insert employee: %w", postgres.TranslateError(err))
		}
		if tag.RowsAffected() == 0 {
			existing, err := scanRecord(q.QueryRow(ctx, `SELECT payload FROM employees WHERE session_id = $1`, rec.SessionID.String()))
			if err != nil {
				return err
			}
			out = existing
			return nil
		}

		_, err = q.Exec(ctx, `
			INSERT INTO user_accounts (id, organization_id, employee_id, email, role, activation_hash, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			account.ID.String(), account.OrganizationID.String(), account.EmployeeID.String(),
			account.Email, account.Role, account.ActivationHash, account.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert user account: %w", postgres.TranslateError(err))
		}
		copied := *rec
		out = &copied
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, employeeID id.EmployeeID) (*models.Record, error) {
	return scanRecord(s.q(ctx).QueryRow(ctx, `SELECT payload FROM employees WHERE id = $1`, employeeID.String()))
}

func (s *PostgresStore) FindBySession(ctx context.Context, sessionID id.SessionID) (*models.Record, error) {
	return scanRecord(s.q(ctx).QueryRow(ctx, `SELECT payload FROM employees WHERE session_id = $1`, sessionID.String()))
}

func (s *PostgresStore) FindAccount(ctx context.Context, employeeID id.EmployeeID) (*models.UserAccount, error) {
	var (
		acct        models.UserAccount
		accountID   string
		orgID       string
		activatedAt *time.Time
	)
	err := s.q(ctx).QueryRow(ctx, `
		SELECT id, organization_id, email, role, activation_hash, activated_at, created_at
		FROM user_accounts WHERE employee_id = $1`, employeeID.String()).
		Scan(&accountID, &orgID, &acct.Email, &acct.Role, &acct.ActivationHash, &activatedAt, &acct.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	if acct.ID, err = id.ParseUserID(accountID); err != nil {
		return nil, fmt.Errorf("decode account id: %w", err)
	}
	if acct.OrganizationID, err = id.ParseOrganizationID(orgID); err != nil {
		return nil, fmt.Errorf("decode organization id: %w", err)
	}
	acct.EmployeeID = employeeID
	acct.ActivatedAt = activatedAt
	return &acct, nil
}

func (s *PostgresStore) ActivateAccount(ctx context.Context, employeeID id.EmployeeID, now time.Time) error {
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE user_accounts SET activated_at = $2, activation_hash = ''
		WHERE employee_id = $1 AND activated_at IS NULL`, employeeID.String(), now)
	if err != nil {
		return fmt.Errorf("activate account: %w", postgres.TranslateError(err))
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.FindAccount(ctx, employeeID); err != nil {
			return err
		}
		return fmt.Errorf("account already activated: %w", sentinel.ErrInvalidState)
	}
	return nil
}

func (s *PostgresStore) RotateActivationHash(ctx context.Context, employeeID id.EmployeeID, hash string) error {
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE user_accounts SET activation_hash = $2
		WHERE employee_id = $1 AND activated_at IS NULL`, employeeID.String(), hash)
	if err != nil {
		return fmt.Errorf("rotate activation hash: %w", postgres.TranslateError(err))
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.FindAccount(ctx, employeeID); err != nil {
			return err
		}
		return fmt.Errorf("account already activated: %w", sentinel.ErrInvalidState)
	}
	return nil
}

func scanRecord(row pgx.Row) (*models.Record, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("employee not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan employee: %w", err)
	}
	var rec models.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("decode employee payload: %w", err)
	}
	return &rec, nil
}
