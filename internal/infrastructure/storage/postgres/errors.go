package postgres

import (
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"clinicledger/internal/core/apperror"
)

// SQLSTATE codes mapped to domain errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// UniqueField names the field reported for a unique constraint.
// Repositories pass their constraint names so duplicates surface with the
// field the caller sent.
type UniqueField map[string]string

// MapError converts driver errors into AppErrors where the meaning is known:
// no rows becomes NOT_FOUND, unique violations DUPLICATE_ENTRY, foreign key and
// check violations CONFLICT. Anything else is wrapped with op for context.
func MapError(err error, op, entity string, entityID any, fields UniqueField) error {
	if err == nil {
		return nil
	}
	if pgxscan.NotFound(err) {
		return apperror.NewNotFound(entity, entityID)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			field := fields[pgErr.ConstraintName]
			if field == "" {
				field = "key"
			}
			return apperror.NewDuplicate(entity, field, fmt.Sprint(entityID)).WithCause(err)
		case pgForeignKeyViolation:
			return apperror.NewConflict(entity+" references a missing or referenced row").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case pgCheckViolation:
			return apperror.NewValidation(entity+" violates a check constraint").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
