package device

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedEntry is one record of the curated local corpus listing. JSON is a
// subset of YAML, so either format can be read.
type SeedEntry struct {
	ID              string      `yaml:"id"`
	Name            string      `yaml:"name"`
	Category        string      `yaml:"category"`
	ManufacturerIDs []string    `yaml:"manufacturerIds"`
	ProductIDs      []string    `yaml:"productIds"`
	Capabilities    []string    `yaml:"capabilities"`
	Clusters        []string    `yaml:"clusters"`
	Attributes      []NamedItem `yaml:"attributes"`
}

type seedFile struct {
	Devices []SeedEntry `yaml:"devices"`
}

// LoadSeed reads a seed listing from path.
func LoadSeed(path string) ([]Entry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes either a bare list of records or a document with a
// top-level "devices" list. Every entry gets the "existing" provenance.
func ParseSeed(data []byte) ([]Entry, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	var records []SeedEntry
	switch root := node.Content[0]; root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&records); err != nil {
			return nil, fmt.Errorf("decoding seed list: %w", err)
		}
	case yaml.MappingNode:
		var f seedFile
		if err := root.Decode(&f); err != nil {
			return nil, fmt.Errorf("decoding seed document: %w", err)
		}
		records = f.Devices
	default:
		return nil, errors.New("parsing seed file: expected a list or a devices document")
	}

	entries := make([]Entry, 0, len(records))
	for i, r := range records {
		id := r.ID
		if id == "" {
			id = r.Name
		}
		e := Entry{
			ID:              id,
			Name:            r.Name,
			Category:        r.Category,
			Capabilities:    Union(r.Capabilities),
			Clusters:        Union(r.Clusters),
			ManufacturerIDs: Union(r.ManufacturerIDs),
			ProductIDs:      Union(r.ProductIDs),
			Provenance:      []string{ProvenanceExisting},
			Attributes:      UnionNamed(nil, r.Attributes),
		}
		if err := ValidateEntry(&e); err != nil {
			return nil, fmt.Errorf("seed record %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
