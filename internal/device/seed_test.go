package device

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestParseSeed_List(t *testing.T) {
	data := []byte(`
- name: wall_switch_2gang_ac
  category: switch
  manufacturerIds: [_TZ3000_a, _TZ3000_b, _TZ3000_a]
  productIds: [TS0012]
  capabilities: [onoff, onoff_2]
- id: dimmer_1gang
  name: Dimmer
  category: dimmer
  capabilities: [onoff, dim]
  attributes:
    - name: configure
      body: "await reporting.onOff(endpoint)"
`)
	entries, err := ParseSeed(data)
	if err != nil {
		t.Fatalf("ParseSeed() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ParseSeed() = %d entries, want 2", len(entries))
	}

	first := entries[0]
	if first.ID != "wall_switch_2gang_ac" || first.Category != "switch" {
		t.Errorf("first = %s", first.Key())
	}
	if !slices.Equal(first.ManufacturerIDs, []string{"_TZ3000_a", "_TZ3000_b"}) {
		t.Errorf("ManufacturerIDs = %v", first.ManufacturerIDs)
	}
	if !slices.Equal(first.Provenance, []string{ProvenanceExisting}) {
		t.Errorf("Provenance = %v", first.Provenance)
	}

	second := entries[1]
	if second.ID != "dimmer_1gang" || second.Name != "Dimmer" {
		t.Errorf("second = %+v", second)
	}
	if len(second.Attributes) != 1 || second.Attributes[0].Name != "configure" {
		t.Errorf("Attributes = %+v", second.Attributes)
	}
}

func TestParseSeed_JSONDocument(t *testing.T) {
	data := []byte(`{"devices": [{"name": "smart_plug", "category": "plug", "capabilities": ["onoff", "measure_power"]}]}`)
	entries, err := ParseSeed(data)
	if err != nil {
		t.Fatalf("ParseSeed() error = %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "smart_plug" {
		t.Errorf("ParseSeed() = %+v", entries)
	}
}

func TestParseSeed_Errors(t *testing.T) {
	tests := map[string]string{
		"scalar root":      `just a string`,
		"missing category": `[{name: x}]`,
		"bad yaml":         "- name: [unclosed",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseSeed([]byte(data)); err == nil {
				t.Error("ParseSeed() error = nil")
			}
		})
	}

	_, err := ParseSeed([]byte(`[{name: x}]`))
	if !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("missing category error = %v, want ErrInvalidEntry", err)
	}
}

func TestParseSeed_Empty(t *testing.T) {
	entries, err := ParseSeed(nil)
	if err != nil || len(entries) != 0 {
		t.Errorf("ParseSeed(nil) = %v, %v", entries, err)
	}
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.yaml")
	if err := os.WriteFile(path, []byte("- {name: a, category: switch}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	entries, err := LoadSeed(path)
	if err != nil || len(entries) != 1 {
		t.Fatalf("LoadSeed() = %v, %v", entries, err)
	}

	if _, err := LoadSeed(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadSeed(missing) error = nil")
	}
}
