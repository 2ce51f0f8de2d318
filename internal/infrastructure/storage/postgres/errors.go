package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"restopos/internal/core/apperror"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	return pgCode(err) == pgUniqueViolation
}

// IsForeignKeyViolation reports whether err is a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	return pgCode(err) == pgForeignKeyViolation
}

// IsCheckViolation reports whether err violates a CHECK constraint.
func IsCheckViolation(err error) bool {
	return pgCode(err) == pgCheckViolation
}

// ConstraintName returns the violated constraint, empty for other errors.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// DuplicateOr converts a unique violation into a DUPLICATE_ENTRY error and returns
// other errors unchanged.
func DuplicateOr(err error, entity, field, value string) error {
	if IsUniqueViolation(err) {
		return apperror.NewDuplicate(entity, field, value).WithCause(err)
	}
	return err
}
