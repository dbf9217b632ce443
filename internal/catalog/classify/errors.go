package classify

import "errors"

// ErrInvalidRule is returned by NewClassifier for a rule with no category,
// no class or a pattern that does not compile.
var ErrInvalidRule = errors.New("classify: invalid rule")
