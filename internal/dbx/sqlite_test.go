package dbx

import (
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// The in-memory test database reports constraint errors its own way.
func init() {
	uniqueViolationMatchers = append(uniqueViolationMatchers, func(err error) bool {
		var liteErr *sqlite.Error
		return errors.As(err, &liteErr) && liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	})
}
