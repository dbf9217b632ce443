package update

import (
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/nerrad567/gray-logic-catalog/internal/catalog/classify"
	"github.com/nerrad567/gray-logic-catalog/internal/catalog/extract"
	"github.com/nerrad567/gray-logic-catalog/internal/catalog/schema"
	"github.com/nerrad567/gray-logic-catalog/internal/device"
)

const (
	maxNameBytes = 200
	maxIDBytes   = 200
)

var gangCapabilityRe = regexp.MustCompile(`_(\d+)$`)

// batch is one source's extraction grouped into corpus entries.
type batch struct {
	entries     []device.Entry
	definitions []schema.DataPointDefinition

	// meta is parallel to entries.
	meta []entryMeta
}

type entryMeta struct {
	class string
	count int
	dps   []schema.Key
}

// buildBatch classifies every record and groups records sharing a
// classified id into one entry. Records no rule matches are kept under
// the unclassified category, keyed by their model.
func (o *Orchestrator) buildBatch(sourceID string, res *extract.Result) batch {
	var b batch
	index := make(map[device.Key]int)
	byFingerprint := make(map[string]int)

	for _, rec := range res.Records {
		c := o.deps.Classifier.ClassifyDetailed(rec.ClassificationText())

		key := device.Key{ID: truncate(c.Category, maxIDBytes), Category: c.Class}
		if !c.Classified {
			model := rec.Model
			if model == "" {
				model = rec.ModelID
			}
			key = device.Key{ID: truncate(classify.Slug(model), maxIDBytes), Category: device.CategoryUnclassified}
		}

		e := device.Entry{
			ID:              key.ID,
			Name:            truncate(entryName(rec), maxNameBytes),
			Category:        key.Category,
			ManufacturerIDs: []string{rec.ManufacturerName},
			ProductIDs:      []string{rec.ModelID},
			Provenance:      []string{sourceID},
		}
		if rec.Vendor != "" {
			e.Attributes = []device.NamedItem{{Name: "vendor", Body: rec.Vendor}}
		}

		i, ok := index[key]
		if !ok {
			i = len(b.entries)
			index[key] = i
			b.entries = append(b.entries, e)
			b.meta = append(b.meta, entryMeta{class: c.Class})
		} else {
			b.entries[i].Absorb(&e)
		}
		if c.Classified && c.Count > b.meta[i].count {
			b.meta[i].count = c.Count
		}
		byFingerprint[rec.Key()] = i
	}

	for _, h := range res.Hints {
		i, ok := byFingerprint[h.Key()]
		if !ok || b.meta[i].class == "" {
			continue
		}
		def := schema.NormalizeHint(b.meta[i].class, h)
		b.definitions = append(b.definitions, def)
		b.meta[i].dps = append(b.meta[i].dps, def.Key())
	}

	return b
}

// withCapabilities fills entry capabilities from the schema database.
// Hinted data points contribute their resolved capability; entries with no
// hints take the curated capabilities of their category, limited to the
// classified gang count.
func (o *Orchestrator) withCapabilities(b batch) []device.Entry {
	out := make([]device.Entry, len(b.entries))
	for i, e := range b.entries {
		m := b.meta[i]

		var caps []string
		for _, k := range m.dps {
			if def, ok := o.deps.Schema.Lookup(k.CategoryID, k.DPID); ok && def.Capability != "" {
				caps = append(caps, def.Capability)
			}
		}
		if len(caps) == 0 && m.class != "" {
			caps = defaultCapabilities(o.deps.Schema.Category(m.class), m.count)
		}

		e.Capabilities = device.Union(e.Capabilities, caps)
		out[i] = e
	}
	return out
}

// defaultCapabilities returns the capabilities of defs, skipping numbered
// gang capabilities (onoff_3) above count.
func defaultCapabilities(defs []schema.DataPointDefinition, count int) []string {
	if count < 1 {
		count = 1
	}
	var caps []string
	for _, d := range defs {
		if d.Capability == "" {
			continue
		}
		if m := gangCapabilityRe.FindStringSubmatch(d.Capability); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > count {
				continue
			}
		}
		caps = append(caps, d.Capability)
	}
	return device.Union(caps)
}

func entryName(rec extract.Record) string {
	switch {
	case rec.Description != "":
		return rec.Description
	case rec.Model != "":
		return rec.Model
	default:
		return rec.ModelID
	}
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
