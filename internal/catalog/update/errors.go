package update

import "errors"

var (
	// ErrMissingDependency is returned by New when a required component is nil.
	ErrMissingDependency = errors.New("update: missing dependency")

	// ErrSnapshot wraps failures writing or reading the canonical snapshot.
	ErrSnapshot = errors.New("update: snapshot")
)
