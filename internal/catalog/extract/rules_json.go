package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Family groups numeric Zigbee manufacturer codes under one vendor name.
type Family struct {
	Name  string
	Codes []int
}

// DefaultFamilies returns the vendor families tracked in firmware indexes.
func DefaultFamilies() []Family {
	return []Family{
		{Name: "tuya", Codes: []int{0x1002, 0x1141}},
		{Name: "xiaomi", Codes: []int{0x115F}},
		{Name: "ikea", Codes: []int{0x117C}},
	}
}

// otaEntry is one firmware descriptor in an OTA index.
type otaEntry struct {
	ManufacturerCode *int     `json:"manufacturerCode"`
	ImageType        int      `json:"imageType"`
	ModelID          string   `json:"modelId"`
	ManufacturerName []string `json:"manufacturerName"`
	FileName         string   `json:"fileName"`
}

// OTAIndexRule reads a JSON firmware index and keeps entries whose
// manufacturerCode belongs to one of Families. Records are tagged with
// their family so results can be partitioned.
type OTAIndexRule struct {
	Families []Family
}

// Name implements Rule.
func (OTAIndexRule) Name() string { return "ota-index" }

// Apply implements Rule.
func (r OTAIndexRule) Apply(sourceID, text string, acc *Result) error {
	entries, err := decodeElements[otaEntry](text, skipElement(acc, sourceID, r.Name()))

	family := make(map[int]string)
	for _, f := range r.Families {
		for _, code := range f.Codes {
			family[code] = f.Name
		}
	}

	for _, e := range entries {
		if e.ManufacturerCode == nil {
			continue
		}
		name, ok := family[*e.ManufacturerCode]
		if !ok {
			continue
		}

		model := e.ModelID
		if model == "" {
			model = fmt.Sprintf("image-%d", e.ImageType)
		}
		manufacturers := e.ManufacturerName
		if len(manufacturers) == 0 {
			manufacturers = []string{fmt.Sprintf("0x%04X", *e.ManufacturerCode)}
		}

		for _, m := range manufacturers {
			acc.AddRecord(Record{
				Fingerprint: Fingerprint{ManufacturerName: m, ModelID: model, SourceID: sourceID},
				Family:      name,
				Description: strings.TrimSuffix(e.FileName, ".ota"),
			})
		}
	}
	if err != nil {
		return fmt.Errorf("decoding firmware index: %w", err)
	}
	return nil
}

// communityEntry is one device in a community compatibility database.
type communityEntry struct {
	Vendor      string   `json:"vendor"`
	Model       string   `json:"model"`
	Title       string   `json:"title"`
	Category    string   `json:"category"`
	ZigbeeModel []string `json:"zigbeemodel"`
}

// CatalogJSONRule reads a community device database. Each entry's
// zigbeemodel list mixes manufacturer names and model IDs; names matching
// Prefixes are paired with every model ID of the same entry.
type CatalogJSONRule struct {
	Prefixes []string
}

// Name implements Rule.
func (CatalogJSONRule) Name() string { return "community-db" }

// Apply implements Rule.
func (r CatalogJSONRule) Apply(sourceID, text string, acc *Result) error {
	entries, err := decodeElements[communityEntry](text, skipElement(acc, sourceID, r.Name()))

	for _, e := range entries {
		var manufacturers, models []string
		for _, id := range e.ZigbeeModel {
			id = strings.TrimSpace(id)
			switch {
			case id == "":
			case strings.HasPrefix(id, "_"):
				if hasPrefix(id, r.Prefixes) {
					manufacturers = append(manufacturers, id)
				}
			default:
				models = append(models, id)
			}
		}
		if len(models) == 0 && e.Model != "" {
			models = []string{e.Model}
		}

		description := e.Title
		if description == "" {
			description = strings.TrimSpace(e.Category + " " + e.Model)
		}
		for _, m := range manufacturers {
			for _, model := range models {
				acc.AddRecord(Record{
					Fingerprint: Fingerprint{ManufacturerName: m, ModelID: model, SourceID: sourceID},
					Vendor:      e.Vendor,
					Model:       e.Model,
					Description: description,
				})
			}
		}
	}
	if err != nil {
		return fmt.Errorf("decoding community database: %w", err)
	}
	return nil
}

var (
	issueManufacturerRe = regexp.MustCompile(`_[A-Z][A-Z0-9]{2,6}_[A-Za-z0-9]{4,16}`)
	issueModelRe        = regexp.MustCompile(`\bTS[0-9]{3,4}[A-Z]?\b`)
)

type issue struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// IssueTextRule scans issue-tracker JSON for device requests. Each
// manufacturer name is paired with the nearest model token in the same
// issue; issues without a model token are skipped.
type IssueTextRule struct {
	Prefixes []string
}

// Name implements Rule.
func (IssueTextRule) Name() string { return "issue-text" }

// Apply implements Rule.
func (r IssueTextRule) Apply(sourceID, text string, acc *Result) error {
	issues, err := decodeElements[issue](text, skipElement(acc, sourceID, r.Name()))

	for _, is := range issues {
		body := is.Title + "\n" + is.Body
		models := issueModelRe.FindAllStringIndex(body, -1)
		if len(models) == 0 {
			continue
		}
		for _, loc := range issueManufacturerRe.FindAllStringIndex(body, -1) {
			manufacturer := body[loc[0]:loc[1]]
			if !hasPrefix(manufacturer, r.Prefixes) {
				continue
			}
			model := nearest(body, models, loc[0])
			acc.AddRecord(Record{
				Fingerprint: Fingerprint{ManufacturerName: manufacturer, ModelID: model, SourceID: sourceID},
				Description: strings.TrimSpace(is.Title),
			})
		}
	}
	if err != nil {
		return fmt.Errorf("decoding issues: %w", err)
	}
	return nil
}

// decodeElements decodes a JSON array one element at a time. Elements
// that do not fit T are passed to skip and left out. A syntax error stops
// decoding; the elements read so far are returned with the error.
func decodeElements[T any](text string, skip func(index int, err error)) ([]T, error) {
	dec := json.NewDecoder(strings.NewReader(text))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, fmt.Errorf("expected JSON array, got %v", tok)
	}

	var out []T
	for i := 0; dec.More(); i++ {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return out, fmt.Errorf("element %d: %w", i, err)
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			skip(i, err)
			continue
		}
		out = append(out, v)
	}
	if _, err := dec.Token(); err != nil {
		return out, fmt.Errorf("closing array: %w", err)
	}
	return out, nil
}

// skipElement records a malformed array element on acc.
func skipElement(acc *Result, sourceID, rule string) func(int, error) {
	return func(i int, err error) {
		acc.AddError(ParseError{SourceID: sourceID, Rule: rule, Err: fmt.Errorf("element %d: %w", i, err)})
	}
}

// nearest returns the token in spans whose start is closest to pos.
// spans must be non-empty.
func nearest(text string, spans [][]int, pos int) string {
	best := spans[0]
	bestDist := abs(best[0] - pos)
	for _, s := range spans[1:] {
		if d := abs(s[0] - pos); d < bestDist {
			best, bestDist = s, d
		}
	}
	return text[best[0]:best[1]]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
