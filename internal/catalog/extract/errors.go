package extract

import (
	"errors"
	"fmt"
)

// Sentinel errors for extraction.
var (
	// ErrParse matches every ParseError via errors.Is.
	ErrParse = errors.New("extract: parse error")

	// ErrUnknownRuleSet is returned when a source names a rule set that is not registered.
	ErrUnknownRuleSet = errors.New("extract: unknown rule set")

	// ErrRulePanic wraps a recovered panic inside a rule.
	ErrRulePanic = errors.New("extract: rule panicked")
)

// ParseError records a rule that failed on a source's text. It is
// recoverable: the rest of the rule set still runs.
type ParseError struct {
	SourceID string
	Rule     string
	Err      error
}

// Error implements error.
func (e ParseError) Error() string {
	return fmt.Sprintf("parsing %s with %s: %v", e.SourceID, e.Rule, e.Err)
}

// Unwrap returns the underlying error.
func (e ParseError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrParse.
func (e ParseError) Is(target error) bool {
	return target == ErrParse
}
