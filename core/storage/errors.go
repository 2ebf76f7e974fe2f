package storage

import "errors"

var (
	// ErrNotFound reports an absent record. Callers treat it as a normal outcome.
	ErrNotFound = errors.New("storage: not found")
	// ErrDuplicate reports a uniqueness conflict on create.
	ErrDuplicate = errors.New("storage: duplicate")
	// ErrInvalid wraps field validation failures.
	ErrInvalid = errors.New("storage: invalid value")

	// ErrBlank reports an empty or whitespace-only required text.
	ErrBlank = errors.New("value is blank")
	// ErrTooLong reports a text over its length limit.
	ErrTooLong = errors.New("value is too long")
)
