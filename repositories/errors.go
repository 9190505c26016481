package repositories

import "errors"

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when an insert or update violates a
	// uniqueness constraint. The account linker treats this as a lost race
	// and retries the lookup path rather than surfacing it.
	ErrDuplicate = errors.New("duplicate record")
)
