package store

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when another user already has the email.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrDuplicateID is returned when a record with the same id already exists.
	ErrDuplicateID = errors.New("id already exists")

	// ErrInvalidRecord is returned when a record is missing required fields.
	ErrInvalidRecord = errors.New("invalid record")
)
