package fetch

import (
	"errors"
	"fmt"
	"strconv"
)

// Sentinel errors for the fetcher.
var (
	// ErrNetwork matches every *NetworkError via errors.Is.
	ErrNetwork = errors.New("fetch: network error")

	// ErrTooManyRedirects is wrapped when the redirect chain exceeds the limit.
	ErrTooManyRedirects = errors.New("fetch: too many redirects")

	// ErrBodyTooLarge is wrapped when a response exceeds the configured size.
	ErrBodyTooLarge = errors.New("fetch: response body too large")
)

// NetworkError describes a failed retrieval. Exactly one of Timeout,
// StatusCode or Err explains the failure.
type NetworkError struct {
	URL        string
	StatusCode int
	Timeout    bool
	Err        error
}

// Error implements error.
func (e *NetworkError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("fetching %s: timeout", e.URL)
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("fetching %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetching %s: status %d", e.URL, e.StatusCode)
	}
}

// Unwrap returns the underlying transport error, if any.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrNetwork.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// Status returns the status code as text, or "timeout".
func (e *NetworkError) Status() string {
	if e.Timeout {
		return "timeout"
	}
	if e.StatusCode == 0 {
		return "error"
	}
	return strconv.Itoa(e.StatusCode)
}
