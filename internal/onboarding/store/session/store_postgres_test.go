package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/models"
	"github.com/gramv/onboardingsoftware-sub000/internal/platform/postgres"
	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/sentinel"
)

func fixtureSession(t *testing.T, status models.Status) *models.Session {
	t.Helper()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	sess, err := models.NewSession(id.NewSessionID(), id.NewOrganizationID(), models.Candidate{Email: "Ana@Example.com"},
		id.NewUserID(), models.TokenKindAccessCode, "hash", now.Add(time.Hour), models.StepLanguage, now)
	require.NoError(t, err)
	sess.Status = status
	return sess
}

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *PostgresStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPostgresStore(mock, postgres.NewTransactionManager(mock))
}

func TestPostgresCreate(t *testing.T) {
	t.Run("inserts lookup columns and payload", func(t *testing.T) {
		mock, store := newMockStore(t)
		sess := fixtureSession(t, models.StatusPending)

		mock.ExpectExec("INSERT INTO onboarding_sessions").
			WithArgs(sess.ID.String(), sess.OrganizationID.String(), pgxmock.AnyArg(), "ana@example.com", "hash", "pending",
				sess.ExpiresAt, sess.CreatedAt, sess.UpdatedAt, int64(1), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, store.Create(context.Background(), sess))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate token hash maps to ErrAlreadyUsed", func(t *testing.T) {
		mock, store := newMockStore(t)
		sess := fixtureSession(t, models.StatusPending)

		mock.ExpectExec("INSERT INTO onboarding_sessions").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "onboarding_sessions_token_hash_key"})

		err := store.Create(context.Background(), sess)
		require.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
	})

	t.Run("second live session for a candidate maps to ErrConflict", func(t *testing.T) {
		mock, store := newMockStore(t)
		sess := fixtureSession(t, models.StatusPending)

		mock.ExpectExec("INSERT INTO onboarding_sessions").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_onboarding_sessions_live_candidate"})

		err := store.Create(context.Background(), sess)
		require.ErrorIs(t, err, sentinel.ErrConflict)
		assert.NotErrorIs(t, err, sentinel.ErrAlreadyUsed)
	})
}

func TestPostgresLockCandidate(t *testing.T) {
	mock, store := newMockStore(t)
	orgID := id.NewOrganizationID()

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs(orgID.String() + "|ana@example.com").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectCommit()

	err := postgres.NewTransactionManager(mock).RunInTx(context.Background(), func(ctx context.Context) error {
		release, err := store.LockCandidate(ctx, orgID, " Ana@Example.com ")
		if err != nil {
			return err
		}
		release()
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByTokenHash(t *testing.T) {
	t.Run("decodes payload and takes version from column", func(t *testing.T) {
		mock, store := newMockStore(t)
		sess := fixtureSession(t, models.StatusInProgress)
		payload, err := json.Marshal(sess)
		require.NoError(t, err)

		mock.ExpectQuery("SELECT payload, version FROM onboarding_sessions WHERE token_hash").
			WithArgs("hash").
			WillReturnRows(mock.NewRows([]string{"payload", "version"}).AddRow(payload, int64(7)))

		found, err := store.FindByTokenHash(context.Background(), "hash")
		require.NoError(t, err)
		assert.Equal(t, sess.ID, found.ID)
		assert.Equal(t, models.StatusInProgress, found.Status)
		assert.EqualValues(t, 7, found.Version)
	})

	t.Run("no rows is ErrNotFound", func(t *testing.T) {
		mock, store := newMockStore(t)
		mock.ExpectQuery("SELECT payload, version FROM onboarding_sessions WHERE token_hash").
			WithArgs("missing").
			WillReturnError(pgx.ErrNoRows)

		_, err := store.FindByTokenHash(context.Background(), "missing")
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestPostgresListByOrganization(t *testing.T) {
	mock, store := newMockStore(t)
	sess := fixtureSession(t, models.StatusSubmitted)
	payload, err := json.Marshal(sess)
	require.NoError(t, err)

	mock.ExpectQuery("status = ANY").
		WithArgs(sess.OrganizationID.String(), []string{"submitted"}, 10).
		WillReturnRows(mock.NewRows([]string{"payload", "version"}).AddRow(payload, int64(2)))

	out, err := store.ListByOrganization(context.Background(), sess.OrganizationID,
		models.ListFilter{Statuses: []models.Status{models.StatusSubmitted}, Limit: 10})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, sess.ID, out[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresExecute(t *testing.T) {
	t.Run("locks row and writes with version guard", func(t *testing.T) {
		mock, store := newMockStore(t)
		sess := fixtureSession(t, models.StatusSubmitted)
		payload, err := json.Marshal(sess)
		require.NoError(t, err)

		mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadWrite})
		mock.ExpectQuery("FOR UPDATE").
			WithArgs(sess.ID.String()).
			WillReturnRows(mock.NewRows([]string{"payload", "version"}).AddRow(payload, int64(3)))
		mock.ExpectExec("UPDATE onboarding_sessions").
			WithArgs(sess.ID.String(), "manager_approved", pgxmock.AnyArg(), int64(4), pgxmock.AnyArg(), int64(3)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		updated, err := store.Execute(context.Background(), sess.ID, func(m *models.Session) error {
			_, err := m.CanApply(models.ActionManagerApprove)
			return err
		}, func(m *models.Session) {
			m.ApplyTransition(models.ActionManagerApprove, models.StatusManagerApproved, models.Actor{Role: models.RoleManager}, "", m.UpdatedAt)
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusManagerApproved, updated.Status)
		assert.EqualValues(t, 4, updated.Version)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero rows updated is a conflict", func(t *testing.T) {
		mock, store := newMockStore(t)
		sess := fixtureSession(t, models.StatusSubmitted)
		payload, err := json.Marshal(sess)
		require.NoError(t, err)

		mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadWrite})
		mock.ExpectQuery("FOR UPDATE").
			WithArgs(sess.ID.String()).
			WillReturnRows(mock.NewRows([]string{"payload", "version"}).AddRow(payload, int64(3)))
		mock.ExpectExec("UPDATE onboarding_sessions").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectRollback()

		_, err = store.Execute(context.Background(), sess.ID, nil, func(m *models.Session) {
			m.CurrentStep = models.StepVerify
		})
		require.ErrorIs(t, err, sentinel.ErrConflict)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("validation error rolls back without writing", func(t *testing.T) {
		mock, store := newMockStore(t)
		sess := fixtureSession(t, models.StatusSubmitted)
		payload, err := json.Marshal(sess)
		require.NoError(t, err)

		mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadWrite})
		mock.ExpectQuery("FOR UPDATE").
			WithArgs(sess.ID.String()).
			WillReturnRows(mock.NewRows([]string{"payload", "version"}).AddRow(payload, int64(3)))
		mock.ExpectRollback()

		_, err = store.Execute(context.Background(), sess.ID, func(m *models.Session) error {
			_, err := m.CanApply(models.ActionHRApprove)
			return err
		}, func(*models.Session) {
			t.Fatal("mutate must not run after failed validation")
		})
		require.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
