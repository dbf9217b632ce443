package extract

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var (
	// ("_TZE200_7tdtqgwv", "TS0601") as found in MODELS_INFO and signatures.
	quirkTupleRe = regexp.MustCompile(`\(\s*['"]([^'"]+)['"]\s*,\s*['"]([^'"]+)['"]\s*,?\s*\)`)

	quirkClassRe = regexp.MustCompile(`(?m)^class\s+(\w+)\s*\(`)
)

// QuirkTupleRule extracts (manufacturer, model) tuples from quirk
// definition modules. The enclosing class name, split into words,
// becomes the record description.
type QuirkTupleRule struct {
	Prefixes []string
}

// Name implements Rule.
func (QuirkTupleRule) Name() string { return "quirk-tuple" }

// Apply implements Rule.
func (r QuirkTupleRule) Apply(sourceID, text string, acc *Result) error {
	classes := quirkClassRe.FindAllStringSubmatchIndex(text, -1)

	for _, m := range quirkTupleRe.FindAllStringSubmatchIndex(text, -1) {
		manufacturer := text[m[2]:m[3]]
		model := text[m[4]:m[5]]
		if !hasPrefix(manufacturer, r.Prefixes) {
			continue
		}

		rec := Record{Fingerprint: Fingerprint{
			ManufacturerName: manufacturer,
			ModelID:          model,
			SourceID:         sourceID,
		}}
		if name := enclosingClass(classes, text, m[0]); name != "" {
			rec.Description = splitCamel(name)
		}
		acc.AddRecord(rec)
	}
	return nil
}

// enclosingClass returns the name of the last class declared before pos.
func enclosingClass(classes [][]int, text string, pos int) string {
	i := sort.Search(len(classes), func(i int) bool { return classes[i][0] > pos })
	if i == 0 {
		return ""
	}
	c := classes[i-1]
	return text[c[2]:c[3]]
}

// splitCamel turns "TuyaDoubleSwitchTO" into "Tuya Double Switch TO".
func splitCamel(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte(' ')
			}
		}
		if r == '_' {
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
