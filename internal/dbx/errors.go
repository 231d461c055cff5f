package dbx

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation is the SQLSTATE postgres reports for unique index conflicts.
const pgUniqueViolation = "23505"

// uniqueViolationMatchers classify driver errors. Only postgres is linked in
// production; other drivers register here where they are used.
var uniqueViolationMatchers = []func(error) bool{isPgUniqueViolation}

// IsUniqueViolation reports whether err (or anything it wraps) is a
// unique-constraint violation.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	for _, match := range uniqueViolationMatchers {
		if match(err) {
			return true
		}
	}
	return false
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
