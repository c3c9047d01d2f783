package storage

import "errors"

var (
	// ErrNotFound is returned by lookups that target a specific row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert hits a unique constraint.
	ErrDuplicate = errors.New("duplicate")
)
