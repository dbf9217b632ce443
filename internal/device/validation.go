package device

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxIDLength       = 200
	maxCategoryLength = 100
	maxNameLength     = 200

	// Identifier sets are unbounded: fusion only ever grows them.
	maxAttributes  = 200
	maxAttrBodyLen = 64 * 1024
)

// ValidateEntry checks an entry before it is written.
func ValidateEntry(e *Entry) error {
	if e == nil {
		return fmt.Errorf("%w: entry is nil", ErrInvalidEntry)
	}

	if e.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidEntry)
	}
	if len(e.ID) > maxIDLength {
		return fmt.Errorf("%w: id exceeds %d characters", ErrInvalidEntry, maxIDLength)
	}
	if e.Category == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidEntry)
	}
	if len(e.Category) > maxCategoryLength || strings.Contains(e.Category, "/") {
		return fmt.Errorf("%w: category %q", ErrInvalidEntry, e.Category)
	}
	if len(e.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidEntry, maxNameLength)
	}

	if len(e.Attributes) > maxAttributes {
		return fmt.Errorf("%w: %d attributes, max %d", ErrInvalidEntry, len(e.Attributes), maxAttributes)
	}
	for _, a := range e.Attributes {
		if a.Name == "" {
			return fmt.Errorf("%w: attribute name is required", ErrInvalidEntry)
		}
		if len(a.Body) > maxAttrBodyLen {
			return fmt.Errorf("%w: attribute %q body too large", ErrInvalidEntry, a.Name)
		}
	}

	return nil
}

// GenerateID creates a new UUID for a merge record.
func GenerateID() string {
	return uuid.New().String()
}
