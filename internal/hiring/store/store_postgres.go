package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gramv/onboardingsoftware-sub000/internal/hiring/models"
	"github.com/gramv/onboardingsoftware-sub000/internal/platform/postgres"
	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/sentinel"
)

const applicationColumns = `id, organization_id, first_name, last_name, email, phone, position, department,
	status, offer, notes, reviewed_by, reviewed_at, session_id, created_at, updated_at, version`

// PostgresStore persists job applications in the job_applications table.
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

func (s *PostgresStore) Create(ctx context.Context, app *models.JobApplication) error {
	app.Version = 1
	offer, err := offerArg(app.Offer)
	if err != nil {
		return err
	}
	_, err = s.q(ctx).Exec(ctx, `
		INSERT INTO job_applications (`+applicationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		app.ID.String(), app.OrganizationID.String(),
		app.Applicant.FirstName, app.Applicant.LastName, app.Applicant.Email, app.Applicant.Phone,
		app.Position, app.Department, string(app.Status), offer, app.Notes,
		userIDArg(app.ReviewedBy), app.ReviewedAt, sessionIDArg(app.SessionID),
		app.CreatedAt, app.UpdatedAt, app.Version,
	)
	if err != nil {
		return fmt.Errorf("insert application: %w", postgres.TranslateError(err))
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, appID id.ApplicationID) (*models.JobApplication, error) {
	row := s.q(ctx).QueryRow(ctx, `SELECT `+applicationColumns+` FROM job_applications WHERE id = $1`, appID.String())
	return scanApplication(row)
}

func (s *PostgresStore) List(ctx context.Context, orgID id.OrganizationID, filter models.ListFilter) ([]*models.JobApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM job_applications WHERE organization_id = $1`
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
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()
	var out []*models.JobApplication
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return out, nil
}

// Execute locks the row for the duration of validate and mutate.
func (s *PostgresStore) Execute(ctx context.Context, appID id.ApplicationID, validate func(*models.JobApplication) error, mutate func(*models.JobApplication)) (*models.JobApplication, error) {
	var result *models.JobApplication
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		q := s.q(ctx)
		app, err := scanApplication(q.QueryRow(ctx,
			`SELECT `+applicationColumns+` FROM job_applications WHERE id = $1 FOR UPDATE`, appID.String()))
		if err != nil {
			return err
		}
		if validate != nil {
			if err := validate(app); err != nil {
				return err
			}
		}
		mutate(app)

		offer, err := offerArg(app.Offer)
		if err != nil {
			return err
		}
		expected := app.Version
		app.Version = expected + 1
		tag, err := q.Exec(ctx, `
			UPDATE job_applications
			SET status = $2, offer = $3, notes = $4, reviewed_by = $5, reviewed_at = $6,
				session_id = $7, updated_at = $8, version = $9
			WHERE id = $1 AND version = $10`,
			appID.String(), string(app.Status), offer, app.Notes, userIDArg(app.ReviewedBy), app.ReviewedAt,
			sessionIDArg(app.SessionID), app.UpdatedAt, app.Version, expected)
		if err != nil {
			return fmt.Errorf("update application: %w", postgres.TranslateError(err))
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("application %s changed concurrently: %w", appID, sentinel.ErrConflict)
		}
		result = app
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func scanApplication(row pgx.Row) (*models.JobApplication, error) {
	var (
		app                   models.JobApplication
		appID, orgID, status  string
		offer                 []byte
		reviewedBy, sessionID *string
		reviewedAt            *time.Time
	)
	err := row.Scan(&appID, &orgID,
		&app.Applicant.FirstName, &app.Applicant.LastName, &app.Applicant.Email, &app.Applicant.Phone,
		&app.Position, &app.Department, &status, &offer, &app.Notes,
		&reviewedBy, &reviewedAt, &sessionID, &app.CreatedAt, &app.UpdatedAt, &app.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("application not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan application: %w", err)
	}

	if app.ID, err = id.ParseApplicationID(appID); err != nil {
		return nil, fmt.Errorf("parse application id: %w", err)
	}
	if app.OrganizationID, err = id.ParseOrganizationID(orgID); err != nil {
		return nil, fmt.Errorf("parse organization id: %w", err)
	}
	app.Status = models.Status(status)
	app.ReviewedAt = reviewedAt
	if len(offer) > 0 {
		var o models.JobOffer
		if err := json.Unmarshal(offer, &o); err != nil {
			return nil, fmt.Errorf("decode offer: %w", err)
		}
		app.Offer = &o
	}
	if reviewedBy != nil {
		uid, err := id.ParseUserID(*reviewedBy)
		if err != nil {
			return nil, fmt.Errorf("parse reviewer id: %w", err)
		}
		app.ReviewedBy = &uid
	}
	if sessionID != nil {
		sid, err := id.ParseSessionID(*sessionID)
		if err != nil {
			return nil, fmt.Errorf("parse session id: %w", err)
		}
		app.SessionID = &sid
	}
	return &app, nil
}

func offerArg(offer *models.JobOffer) (any, error) {
	if offer == nil {
		return nil, nil
	}
	b, err := json.Marshal(offer)
	if err != nil {
		return nil, fmt.Errorf("marshal offer: %w", err)
	}
	return b, nil
}

func userIDArg(uid *id.UserID) any {
	if uid == nil {
		return nil
	}
	return uid.String()
}

func sessionIDArg(sid *id.SessionID) any {
	if sid == nil {
		return nil
	}
	return sid.String()
}
