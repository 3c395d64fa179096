package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation  = "23505"
	invalidTextValue = "22P02"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == uniqueViolation
}

// isInvalidUUID reports whether Postgres rejected a malformed uuid parameter.
// Such ids cannot match a row and are treated as not found.
func isInvalidUUID(err error) bool {
	return pgErrorCode(err) == invalidTextValue
}

// isNoMatch reports whether a single-row lookup found nothing.
func isNoMatch(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err)
}
