package device

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestValidateEntry(t *testing.T) {
	valid := func() *Entry {
		return &Entry{ID: "wall_switch_1gang_ac", Category: "switch", Capabilities: []string{"onoff"}}
	}

	tests := []struct {
		name    string
		mutate  func(e *Entry)
		wantErr bool
	}{
		{"valid", func(*Entry) {}, false},
		{"missing id", func(e *Entry) { e.ID = "" }, true},
		{"long id", func(e *Entry) { e.ID = strings.Repeat("x", maxIDLength+1) }, true},
		{"missing category", func(e *Entry) { e.Category = "" }, true},
		{"slash in category", func(e *Entry) { e.Category = "a/b" }, true},
		{"long name", func(e *Entry) { e.Name = strings.Repeat("n", maxNameLength+1) }, true},
		{"large manufacturer set", func(e *Entry) { e.ManufacturerIDs = manufacturerIDs("_TZ3000_", 10000) }, false},
		{"too many attributes", func(e *Entry) {
			e.Attributes = make([]NamedItem, maxAttributes+1)
			for i := range e.Attributes {
				e.Attributes[i].Name = fmt.Sprintf("attr%d", i)
			}
		}, true},
		{"unnamed attribute", func(e *Entry) { e.Attributes = []NamedItem{{Body: "x"}} }, true},
		{"large attribute", func(e *Entry) {
			e.Attributes = []NamedItem{{Name: "a", Body: strings.Repeat("b", maxAttrBodyLen+1)}}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid()
			tt.mutate(e)
			err := ValidateEntry(e)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateEntry() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidEntry) {
				t.Errorf("error %v does not wrap ErrInvalidEntry", err)
			}
		})
	}

	if err := ValidateEntry(nil); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("ValidateEntry(nil) = %v", err)
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b || len(a) != 36 {
		t.Errorf("GenerateID() = %q, %q", a, b)
	}
}

// manufacturerIDs returns n distinct manufacturer names with the given prefix.
func manufacturerIDs(prefix string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s%08d", prefix, i)
	}
	return ids
}
