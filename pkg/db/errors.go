package db

import "strings"

// IsUniqueViolation reports whether err is a unique-constraint violation.
// Postgres names the violated index in its message, so constraintName narrows
// the match to that specific index (the offer claim dedupe relies on this).
// sqlite, which backs the repository tests, reports only the column list and
// never the index name, so any of its UNIQUE failures qualifies.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return true
	}
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value")
}
