package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, device.ErrCorpusWrite) {
//	    // the batch was not applied
//	}
var (
	// ErrEntryNotFound is returned when an entry key does not exist or is archived.
	ErrEntryNotFound = errors.New("device: entry not found")

	// ErrInvalidEntry is returned when entry validation fails.
	ErrInvalidEntry = errors.New("device: invalid entry")

	// ErrLossyMerge is returned when a merge's canonical entry does not
	// contain everything held by the entries it retires.
	ErrLossyMerge = errors.New("device: merge would drop data")

	// ErrCorpusWrite wraps a storage failure. Nothing in the batch was applied.
	ErrCorpusWrite = errors.New("device: corpus write failed")
)
