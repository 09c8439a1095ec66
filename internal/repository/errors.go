package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist within
	// the caller's tenant scope.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a conditional update matched no rows, i.e.
	// the entity exists but is no longer in the expected state.
	ErrConflict = errors.New("conditional update conflict")
)
