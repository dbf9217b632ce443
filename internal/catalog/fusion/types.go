package fusion

import (
	"time"

	"github.com/nerrad567/gray-logic-catalog/internal/device"
)

// Reason explains why a member was grouped with its primary.
type Reason string

// Duplicate reasons.
const (
	ReasonCategoryRace Reason = "category_race"
	ReasonPrefix       Reason = "prefix"
	ReasonSuffix       Reason = "suffix"
	ReasonNormalized   Reason = "normalized"
)

// DuplicateGroup is a primary entry and the entries that duplicate it.
// It is transient: consumed once by Merge.
type DuplicateGroup struct {
	Primary device.Entry   `json:"primary"`
	Members []device.Entry `json:"members"`

	// Reasons is keyed by member key (category/id).
	Reasons map[string]Reason `json:"reasons"`
}

// Result is the outcome of merging one group.
type Result struct {
	ID          string `json:"id"`
	CanonicalID string `json:"canonical_id"`
	Category    string `json:"category"`

	// MergedFrom lists every member id, primary first.
	MergedFrom []string `json:"merged_from"`

	FinalCapabilities    []string `json:"final_capabilities"`
	FinalManufacturerIDs []string `json:"final_manufacturer_ids"`
	FinalProductIDs      []string `json:"final_product_ids"`
	FinalClusters        []string `json:"final_clusters"`
	Provenance           []string `json:"provenance"`

	Attributes []device.NamedItem `json:"attributes,omitempty"`

	// Retired are the member keys to archive.
	Retired []device.Key `json:"retired"`

	CreatedAt time.Time `json:"created_at"`

	canonical device.Entry
}

// Canonical returns the merged entry.
func (r Result) Canonical() device.Entry {
	return *r.canonical.DeepCopy()
}

// ToMerge converts the result into a corpus merge record.
func (r Result) ToMerge() device.Merge {
	return device.Merge{
		ID:         r.ID,
		Canonical:  r.Canonical(),
		Retired:    append([]device.Key(nil), r.Retired...),
		MergedFrom: append([]string(nil), r.MergedFrom...),
		CreatedAt:  r.CreatedAt,
	}
}
