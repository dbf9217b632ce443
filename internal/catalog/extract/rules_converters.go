package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// fingerprint("TS0601", ["_TZE200_abc", "_TZE284_def"])
	fingerprintCallRe = regexp.MustCompile(`fingerprint\(\s*['"]([^'"]+)['"]\s*,\s*\[([^\]]*)\]\s*\)`)

	// {modelID: "TS0601", manufacturerName: "_TZE200_abc"} in either key order
	fingerprintObjRe    = regexp.MustCompile(`\{\s*modelID:\s*['"]([^'"]+)['"]\s*,\s*manufacturerName:\s*['"]([^'"]+)['"]\s*,?\s*\}`)
	fingerprintObjRevRe = regexp.MustCompile(`\{\s*manufacturerName:\s*['"]([^'"]+)['"]\s*,\s*modelID:\s*['"]([^'"]+)['"]\s*,?\s*\}`)

	stringLiteralRe = regexp.MustCompile(`['"]([^'"]+)['"]`)

	definitionStartRe = regexp.MustCompile(`\bfingerprint\s*:`)
	modelFieldRe      = regexp.MustCompile(`\bmodel:\s*['"]([^'"]+)['"]`)
	vendorFieldRe     = regexp.MustCompile(`\bvendor:\s*['"]([^'"]+)['"]`)
	descriptionRe     = regexp.MustCompile(`\bdescription:\s*['"]([^'"]+)['"]`)
	datapointsRe      = regexp.MustCompile(`\btuyaDatapoints:\s*\[`)

	// [1, "state", tuya.valueConverter.onOff]
	datapointTupleRe = regexp.MustCompile(`\[\s*(\d+)\s*,\s*['"]([^'"]+)['"]\s*(?:,\s*([A-Za-z_][\w.]*))?`)

	// whitelabel("Moes", "ZTS-EU_1gang", "Wall touch light switch (1 gang)", ["_TZ3000_hhiodade"])
	whitelabelRe = regexp.MustCompile(`whitelabel\(\s*['"]([^'"]*)['"]\s*,\s*['"]([^'"]*)['"]\s*,\s*['"]([^'"]*)['"]\s*,\s*\[([^\]]*)\]\s*\)`)
)

// hasPrefix reports whether s starts with one of prefixes. An empty
// prefix list accepts everything.
func hasPrefix(s string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// literals returns every quoted string in list, in order.
func literals(list string) []string {
	matches := stringLiteralRe.FindAllStringSubmatch(list, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// fingerprintsIn returns (manufacturer, model) pairs declared in text.
func fingerprintsIn(text string, prefixes []string) [][2]string {
	var out [][2]string
	for _, m := range fingerprintCallRe.FindAllStringSubmatch(text, -1) {
		model := m[1]
		for _, manufacturer := range literals(m[2]) {
			if hasPrefix(manufacturer, prefixes) {
				out = append(out, [2]string{manufacturer, model})
			}
		}
	}
	for _, m := range fingerprintObjRe.FindAllStringSubmatch(text, -1) {
		if hasPrefix(m[2], prefixes) {
			out = append(out, [2]string{m[2], m[1]})
		}
	}
	for _, m := range fingerprintObjRevRe.FindAllStringSubmatch(text, -1) {
		if hasPrefix(m[1], prefixes) {
			out = append(out, [2]string{m[1], m[2]})
		}
	}
	return out
}

// FingerprintCallRule extracts fingerprint declarations from converter
// source files. Manufacturer literals that do not start with one of
// Prefixes are discarded.
type FingerprintCallRule struct {
	Prefixes []string
}

// Name implements Rule.
func (FingerprintCallRule) Name() string { return "fingerprint-call" }

// Apply implements Rule.
func (r FingerprintCallRule) Apply(sourceID, text string, acc *Result) error {
	for _, pair := range fingerprintsIn(text, r.Prefixes) {
		acc.AddRecord(Record{Fingerprint: Fingerprint{
			ManufacturerName: pair[0],
			ModelID:          pair[1],
			SourceID:         sourceID,
		}})
	}
	return nil
}

// DefinitionRule reads the definition block that follows each
// "fingerprint:" key. It back-fills model, vendor and description onto
// that block's records where they are still empty, and turns the block's
// tuyaDatapoints table into DataPointHints.
type DefinitionRule struct {
	Prefixes []string
}

// Name implements Rule.
func (DefinitionRule) Name() string { return "definition-block" }

// Apply implements Rule.
func (r DefinitionRule) Apply(sourceID, text string, acc *Result) error {
	starts := definitionStartRe.FindAllStringIndex(text, -1)
	for i, loc := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		r.applyBlock(sourceID, text[loc[0]:end], acc)
	}
	return nil
}

func (r DefinitionRule) applyBlock(sourceID, block string, acc *Result) {
	pairs := fingerprintsIn(block, r.Prefixes)
	if len(pairs) == 0 {
		return
	}

	model := firstGroup(modelFieldRe, block)
	vendor := firstGroup(vendorFieldRe, block)
	description := firstGroup(descriptionRe, block)

	for _, pair := range pairs {
		rec := acc.Lookup(pair[0], pair[1])
		if rec == nil {
			continue
		}
		if rec.Model == "" {
			rec.Model = model
		}
		if rec.Vendor == "" {
			rec.Vendor = vendor
		}
		if rec.Description == "" {
			rec.Description = description
		}
	}

	loc := datapointsRe.FindStringIndex(block)
	if loc == nil {
		return
	}
	table := bracketed(block[loc[1]-1:])
	for _, m := range datapointTupleRe.FindAllStringSubmatch(table, -1) {
		dp, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		for _, pair := range pairs {
			acc.AddHint(DataPointHint{
				SourceID:         sourceID,
				ManufacturerName: pair[0],
				ModelID:          pair[1],
				DPID:             dp,
				Name:             m[2],
				Converter:        m[3],
			})
		}
	}
}

// bracketed returns s up to the bracket that closes s[0].
func bracketed(s string) string {
	depth := 0
	for i, c := range s {
		switch c {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return s
}

func firstGroup(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// WhitelabelRule applies whitelabel(vendor, model, description, [names])
// declarations to already-extracted records sharing a manufacturer name.
// Whitelabel naming is explicit, so it replaces generic values.
type WhitelabelRule struct{}

// Name implements Rule.
func (WhitelabelRule) Name() string { return "whitelabel" }

// Apply implements Rule.
func (WhitelabelRule) Apply(_ string, text string, acc *Result) error {
	for _, m := range whitelabelRe.FindAllStringSubmatch(text, -1) {
		vendor, model, description := m[1], m[2], m[3]
		for _, manufacturer := range literals(m[4]) {
			for _, rec := range acc.ByManufacturer(manufacturer) {
				if vendor != "" {
					rec.Vendor = vendor
				}
				if model != "" {
					rec.Model = model
				}
				if description != "" {
					rec.Description = description
				}
			}
		}
	}
	return nil
}
