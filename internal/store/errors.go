package store

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// Sentinel errors surfaced by store reads and writes. Callers match them
// with errors.Is.
var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate means an insert violated a uniqueness constraint.
	ErrDuplicate = errors.New("already exists")
)

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
