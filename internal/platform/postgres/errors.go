package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/sentinel"
)

const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
	checkViolationCode      = "23514"
)

// TranslateError maps pgx errors to sentinel errors so services never see
// driver types.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return fmt.Errorf("%w: %s", sentinel.ErrAlreadyUsed, pgErr.ConstraintName)
		case foreignKeyViolationCode:
			return fmt.Errorf("%w: %s", sentinel.ErrNotFound, pgErr.ConstraintName)
		case checkViolationCode:
			return fmt.Errorf("%w: %s", sentinel.ErrInvalidState, pgErr.ConstraintName)
		}
	}
	return err
}
