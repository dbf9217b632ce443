package source

import "errors"

// Domain errors for the source registry.
var (
	// ErrUnknownSource is returned when a source ID is not registered.
	ErrUnknownSource = errors.New("source: unknown source")

	// ErrInvalidSource is returned when a source definition cannot be registered.
	ErrInvalidSource = errors.New("source: invalid source")
)
