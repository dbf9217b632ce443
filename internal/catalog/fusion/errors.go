package fusion

import "errors"

var (
	// ErrEmptyGroup is returned when merging a group without members.
	ErrEmptyGroup = errors.New("fusion: group has no members")

	// ErrFusionConflict is returned when a merged entry would not cover
	// one of its members. The group must be left untouched.
	ErrFusionConflict = errors.New("fusion: conflict")

	// ErrInvalidPattern is returned for a prefix or suffix pattern that
	// does not compile.
	ErrInvalidPattern = errors.New("fusion: invalid pattern")
)
