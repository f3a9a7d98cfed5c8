package types

import "errors"

// List and builder errors.
var (
	// ErrUnsupportedOperation is returned when a named operation is neither a
	// builder passthrough nor a recognized special form.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrInvalidArgument is returned for malformed arguments such as a
	// non-positive page size or an unusable join target.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrExecution wraps every failure reported by the backend while executing
	// or fetching. The backend error is wrapped alongside it.
	ErrExecution = errors.New("execution failure")
)

// Connection and record errors.
var (
	ErrTableNotFound = errors.New("table not found")
	ErrNotFound      = errors.New("record not found")
	ErrClosed        = errors.New("database is closed")
	ErrValidation    = errors.New("validation failed")
)
