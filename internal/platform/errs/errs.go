package errs

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict marks a uniqueness or state conflict.
	ErrConflict = errors.New("conflict")
	// ErrPersistence marks a storage failure the caller may retry.
	ErrPersistence = errors.New("persistence failure")
	// ErrNotReady marks an operation rejected because the chatflow has no usable schema yet.
	ErrNotReady = errors.New("not ready")
	// ErrClosed marks a write against a record that is already terminal.
	ErrClosed = errors.New("closed")
)
