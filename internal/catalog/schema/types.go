package schema

import "slices"

// SourceExisting is the id of the pre-curated local corpus. It ranks above
// every scraped source.
const SourceExisting = "existing"

// ValueType is the wire type of a data point.
type ValueType string

// Value types.
const (
	ValueBool     ValueType = "bool"
	ValueNumber   ValueType = "value"
	ValueEnum     ValueType = "enum"
	ValueBitmap   ValueType = "bitmap"
	ValueHexColor ValueType = "hex_color"
)

// Valid reports whether t is a known value type.
func (t ValueType) Valid() bool {
	switch t {
	case ValueBool, ValueNumber, ValueEnum, ValueBitmap, ValueHexColor:
		return true
	}
	return false
}

// Confidence grades how much a definition is trusted.
type Confidence string

// Confidence levels.
const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Rank orders confidence levels; higher is more trusted. Unknown levels
// rank below low.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	}
	return 0
}

// ValueTransform converts a raw device value into capability units.
type ValueTransform struct {
	Divide  float64           `json:"divide,omitempty"`
	Max     float64           `json:"max,omitempty"`
	EnumMap map[string]string `json:"enum_map,omitempty"`
}

// Equal reports whether two transforms are the same. Nil equals nil only.
func (v *ValueTransform) Equal(o *ValueTransform) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.Divide != o.Divide || v.Max != o.Max || len(v.EnumMap) != len(o.EnumMap) {
		return false
	}
	for k, val := range v.EnumMap {
		if ov, ok := o.EnumMap[k]; !ok || ov != val {
			return false
		}
	}
	return true
}

// DataPointDefinition is the canonical meaning of one vendor data point.
type DataPointDefinition struct {
	CategoryID string          `json:"category_id"`
	DPID       int             `json:"dp_id"`
	Name       string          `json:"name"`
	ValueType  ValueType       `json:"value_type"`
	Capability string          `json:"capability,omitempty"`
	Transform  *ValueTransform `json:"value_transform,omitempty"`
	Confidence Confidence      `json:"confidence"`

	// Sources is an ordered set of contributing source ids.
	Sources []string `json:"sources"`
}

// Key identifies the definition within the database.
type Key struct {
	CategoryID string
	DPID       int
}

// Key returns the definition's (category, dpId) key.
func (d DataPointDefinition) Key() Key {
	return Key{CategoryID: d.CategoryID, DPID: d.DPID}
}

// HasSource reports whether id contributed to d.
func (d DataPointDefinition) HasSource(id string) bool {
	return slices.Contains(d.Sources, id)
}

// sameMapping reports whether a and b describe the data point the same way.
func sameMapping(a, b DataPointDefinition) bool {
	return a.Name == b.Name &&
		a.ValueType == b.ValueType &&
		a.Capability == b.Capability &&
		a.Transform.Equal(b.Transform)
}

// clone returns a deep copy.
func (d DataPointDefinition) clone() DataPointDefinition {
	d.Sources = slices.Clone(d.Sources)
	if d.Transform != nil {
		t := *d.Transform
		if t.EnumMap != nil {
			t.EnumMap = make(map[string]string, len(d.Transform.EnumMap))
			for k, v := range d.Transform.EnumMap {
				t.EnumMap[k] = v
			}
		}
		d.Transform = &t
	}
	return d
}

// unionStrings appends items of b missing from a, keeping order.
func unionStrings(a, b []string) []string {
	out := slices.Clone(a)
	for _, s := range b {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
