package extract

// Fingerprint identifies a device model as reported on the Zigbee network.
// It is immutable once extracted.
type Fingerprint struct {
	ManufacturerName string `json:"manufacturer_name"`
	ModelID          string `json:"model_id"`
	SourceID         string `json:"source_id"`
}

// Key is the identity of a fingerprint. Matching is case-sensitive.
func (f Fingerprint) Key() string {
	return f.ManufacturerName + "|" + f.ModelID
}

// Record is an extracted fingerprint plus descriptive fields that later
// rules in the same rule set may back-fill.
type Record struct {
	Fingerprint

	Vendor      string `json:"vendor,omitempty"`
	Model       string `json:"model,omitempty"`
	Description string `json:"description,omitempty"`

	// Family is the vendor family for firmware-index records.
	Family string `json:"family,omitempty"`
}

// ClassificationText returns the most descriptive text available for
// category classification.
func (r Record) ClassificationText() string {
	switch {
	case r.Description != "":
		return r.Description
	case r.Model != "":
		return r.Model
	default:
		return r.ModelID
	}
}

// DataPointHint is a vendor data point mentioned by a source, before
// normalization into a DataPointDefinition.
type DataPointHint struct {
	SourceID string `json:"source_id"`

	// ManufacturerName and ModelID tie the hint to one fingerprint.
	ManufacturerName string `json:"manufacturer_name"`
	ModelID          string `json:"model_id"`

	DPID      int    `json:"dp_id"`
	Name      string `json:"name"`
	Converter string `json:"converter,omitempty"`
}

// Result is the output of one extraction. Records are unique by
// Fingerprint.Key and keep first-seen order.
type Result struct {
	Records []Record        `json:"records"`
	Hints   []DataPointHint `json:"hints"`
	Errors  []ParseError    `json:"-"`

	index map[string]int
}

// NewResult returns an empty Result.
func NewResult() *Result {
	return &Result{index: make(map[string]int)}
}

// AddRecord appends rec unless a record with the same key already exists.
func (r *Result) AddRecord(rec Record) bool {
	if r.index == nil {
		r.index = make(map[string]int)
	}
	key := rec.Key()
	if _, ok := r.index[key]; ok {
		return false
	}
	r.index[key] = len(r.Records)
	r.Records = append(r.Records, rec)
	return true
}

// Lookup returns a pointer to the record with the given key for back-filling.
func (r *Result) Lookup(manufacturer, modelID string) *Record {
	i, ok := r.index[manufacturer+"|"+modelID]
	if !ok {
		return nil
	}
	return &r.Records[i]
}

// ByManufacturer returns pointers to all records with the given manufacturer name.
func (r *Result) ByManufacturer(manufacturer string) []*Record {
	var out []*Record
	for i := range r.Records {
		if r.Records[i].ManufacturerName == manufacturer {
			out = append(out, &r.Records[i])
		}
	}
	return out
}

// AddHint appends a data point hint, ignoring exact duplicates.
func (r *Result) AddHint(h DataPointHint) {
	for _, existing := range r.Hints {
		if existing == h {
			return
		}
	}
	r.Hints = append(r.Hints, h)
}

// AddError records a fragment a rule skipped.
func (r *Result) AddError(pe ParseError) {
	r.Errors = append(r.Errors, pe)
}

// Key returns the fingerprint key the hint belongs to.
func (h DataPointHint) Key() string {
	return h.ManufacturerName + "|" + h.ModelID
}

// Merge appends other's records, hints and errors after r's, preserving order.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	for _, rec := range other.Records {
		r.AddRecord(rec)
	}
	for _, h := range other.Hints {
		r.AddHint(h)
	}
	r.Errors = append(r.Errors, other.Errors...)
}

// Fingerprints returns the identity part of every record.
func (r *Result) Fingerprints() []Fingerprint {
	out := make([]Fingerprint, len(r.Records))
	for i, rec := range r.Records {
		out[i] = rec.Fingerprint
	}
	return out
}

// ByFamily partitions records that carry a vendor family.
func (r *Result) ByFamily() map[string][]Record {
	out := make(map[string][]Record)
	for _, rec := range r.Records {
		if rec.Family != "" {
			out[rec.Family] = append(out[rec.Family], rec)
		}
	}
	return out
}
