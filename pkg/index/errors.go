package index

import "errors"

var (
	// ErrEntryNotFound is returned when no checksum is recorded for a path.
	ErrEntryNotFound = errors.New("checksum entry not found")

	// ErrInvalidEntry is returned for entries without a path or with a malformed digest.
	ErrInvalidEntry = errors.New("invalid checksum entry")

	// ErrDatabaseError is returned when a database operation fails.
	ErrDatabaseError = errors.New("database error")
)
