package device

import (
	"slices"
	"strings"
	"time"
)

// ProvenanceExisting marks entries imported from the curated local corpus.
const ProvenanceExisting = "existing"

// CategoryUnclassified is used for records no classification rule matched.
const CategoryUnclassified = "unclassified"

// NamedItem is a free-form auxiliary item (a method body, a note) merged
// by name. An item already present under a name is never overwritten.
type NamedItem struct {
	Name string `json:"name" yaml:"name"`
	Body string `json:"body" yaml:"body"`
}

// Key identifies an entry in the corpus.
type Key struct {
	ID       string `json:"id"`
	Category string `json:"category"`
}

// String formats the key as "category/id".
func (k Key) String() string {
	return k.Category + "/" + k.ID
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, bool) {
	category, id, ok := strings.Cut(s, "/")
	if !ok || category == "" || id == "" {
		return Key{}, false
	}
	return Key{ID: id, Category: category}, true
}

// Entry is one device model in the corpus.
type Entry struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Category string `json:"category"`

	// Ordered sets; see Union.
	Capabilities    []string `json:"capabilities"`
	Clusters        []string `json:"clusters"`
	ManufacturerIDs []string `json:"manufacturer_ids"`
	ProductIDs      []string `json:"product_ids"`
	Provenance      []string `json:"provenance"`

	Attributes []NamedItem `json:"attributes,omitempty"`

	// ArchivedAt is set when a merge retires the entry; MergedInto then
	// holds the surviving entry's key.
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	MergedInto string     `json:"merged_into,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key returns the entry's corpus key.
func (e *Entry) Key() Key {
	return Key{ID: e.ID, Category: e.Category}
}

// Active reports whether the entry has not been retired by a merge.
func (e *Entry) Active() bool {
	return e.ArchivedAt == nil
}

// DeepCopy creates a deep copy of the entry.
func (e *Entry) DeepCopy() *Entry {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Capabilities = slices.Clone(e.Capabilities)
	cp.Clusters = slices.Clone(e.Clusters)
	cp.ManufacturerIDs = slices.Clone(e.ManufacturerIDs)
	cp.ProductIDs = slices.Clone(e.ProductIDs)
	cp.Provenance = slices.Clone(e.Provenance)
	cp.Attributes = slices.Clone(e.Attributes)
	if e.ArchivedAt != nil {
		t := *e.ArchivedAt
		cp.ArchivedAt = &t
	}
	return &cp
}

// Absorb unions other's sets and attributes into e. Nothing held by e is
// removed or reordered.
func (e *Entry) Absorb(other *Entry) {
	if e.Name == "" {
		e.Name = other.Name
	}
	e.Capabilities = Union(e.Capabilities, other.Capabilities)
	e.Clusters = Union(e.Clusters, other.Clusters)
	e.ManufacturerIDs = Union(e.ManufacturerIDs, other.ManufacturerIDs)
	e.ProductIDs = Union(e.ProductIDs, other.ProductIDs)
	e.Provenance = Union(e.Provenance, other.Provenance)
	e.Attributes = UnionNamed(e.Attributes, other.Attributes)
	if e.CreatedAt.IsZero() || (!other.CreatedAt.IsZero() && other.CreatedAt.Before(e.CreatedAt)) {
		e.CreatedAt = other.CreatedAt
	}
}

// Covers reports whether e holds every set member and attribute name of other.
func (e *Entry) Covers(other *Entry) bool {
	return isSubset(other.Capabilities, e.Capabilities) &&
		isSubset(other.Clusters, e.Clusters) &&
		isSubset(other.ManufacturerIDs, e.ManufacturerIDs) &&
		isSubset(other.ProductIDs, e.ProductIDs) &&
		isSubset(other.Provenance, e.Provenance) &&
		isSubset(attributeNames(other.Attributes), attributeNames(e.Attributes))
}

// Union returns the members of sets in first-seen order without
// duplicates or empty strings. The result is never nil.
func Union(sets ...[]string) []string {
	n := 0
	for _, s := range sets {
		n += len(s)
	}
	out := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	for _, s := range sets {
		for _, v := range s {
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// UnionNamed appends items from b whose name is not already in a.
func UnionNamed(a, b []NamedItem) []NamedItem {
	out := slices.Clone(a)
	for _, item := range b {
		if item.Name == "" {
			continue
		}
		if !slices.ContainsFunc(out, func(x NamedItem) bool { return x.Name == item.Name }) {
			out = append(out, item)
		}
	}
	return out
}

func isSubset(sub, super []string) bool {
	if len(sub)*len(super) <= 1024 {
		for _, v := range sub {
			if v != "" && !slices.Contains(super, v) {
				return false
			}
		}
		return true
	}

	// Manufacturer sets run to thousands of names.
	have := make(map[string]struct{}, len(super))
	for _, v := range super {
		have[v] = struct{}{}
	}
	for _, v := range sub {
		if _, ok := have[v]; v != "" && !ok {
			return false
		}
	}
	return true
}

func attributeNames(items []NamedItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Name
	}
	return out
}

// Merge is a committed fusion: the canonical entry that survives, the keys
// it retired and the ids it was built from.
type Merge struct {
	ID        string    `json:"id"`
	Canonical Entry     `json:"canonical"`
	Retired   []Key     `json:"retired"`
	CreatedAt time.Time `json:"created_at"`

	// MergedFrom lists every member id, canonical first.
	MergedFrom []string `json:"merged_from"`
}

// UpsertStats counts the effect of an Upsert batch.
type UpsertStats struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}
