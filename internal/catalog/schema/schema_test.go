package schema

import (
	"errors"
	"slices"
	"testing"

	"github.com/nerrad567/gray-logic-catalog/internal/catalog/extract"
)

func def(conf Confidence, name string, sources ...string) DataPointDefinition {
	return DataPointDefinition{
		CategoryID: "dimmer",
		DPID:       2,
		Name:       name,
		ValueType:  ValueNumber,
		Capability: "dim",
		Confidence: conf,
		Sources:    sources,
	}
}

func TestResolveDataPoint(t *testing.T) {
	tests := []struct {
		name         string
		incumbent    DataPointDefinition
		challenger   DataPointDefinition
		wantName     string
		wantSources  []string
		wantConflict bool
	}{
		{
			name:         "higher confidence wins",
			incumbent:    def(ConfidenceLow, "bright", "zha"),
			challenger:   def(ConfidenceHigh, "brightness", "z2m"),
			wantName:     "brightness",
			wantSources:  []string{"z2m", "zha"},
			wantConflict: true,
		},
		{
			name:         "existing wins a confidence tie as challenger",
			incumbent:    def(ConfidenceMedium, "bright", "z2m", "zha"),
			challenger:   def(ConfidenceMedium, "brightness", SourceExisting),
			wantName:     "brightness",
			wantSources:  []string{SourceExisting, "z2m", "zha"},
			wantConflict: true,
		},
		{
			name:         "existing wins a confidence tie as incumbent",
			incumbent:    def(ConfidenceMedium, "brightness", SourceExisting),
			challenger:   def(ConfidenceMedium, "bright", "z2m", "zha"),
			wantName:     "brightness",
			wantSources:  []string{SourceExisting, "z2m", "zha"},
			wantConflict: true,
		},
		{
			name:         "more sources wins without existing",
			incumbent:    def(ConfidenceLow, "bright", "zha"),
			challenger:   def(ConfidenceLow, "brightness", "z2m", "blakadder"),
			wantName:     "brightness",
			wantSources:  []string{"z2m", "blakadder", "zha"},
			wantConflict: true,
		},
		{
			name:         "incumbent keeps a full tie",
			incumbent:    def(ConfidenceLow, "bright", "zha"),
			challenger:   def(ConfidenceLow, "brightness", "z2m"),
			wantName:     "bright",
			wantSources:  []string{"zha", "z2m"},
			wantConflict: true,
		},
		{
			name:         "agreeing definitions only merge sources",
			incumbent:    def(ConfidenceMedium, "brightness", "z2m"),
			challenger:   def(ConfidenceMedium, "brightness", "z2m", "zha"),
			wantName:     "brightness",
			wantSources:  []string{"z2m", "zha"},
			wantConflict: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, conflict := ResolveDataPoint(tt.incumbent, tt.challenger)
			if got.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", got.Name, tt.wantName)
			}
			if !slices.Equal(got.Sources, tt.wantSources) {
				t.Errorf("Sources = %v, want %v", got.Sources, tt.wantSources)
			}
			if conflict != tt.wantConflict {
				t.Errorf("conflict = %v, want %v", conflict, tt.wantConflict)
			}
		})
	}
}

func TestResolveDataPoint_DoesNotAliasInputs(t *testing.T) {
	a := def(ConfidenceHigh, "brightness", SourceExisting)
	b := def(ConfidenceLow, "brightness", "z2m")

	got, _ := ResolveDataPoint(a, b)
	got.Sources[0] = "mutated"

	if a.Sources[0] != SourceExisting {
		t.Errorf("incumbent sources mutated: %v", a.Sources)
	}
}

func TestNormalizeHint(t *testing.T) {
	tests := []struct {
		name       string
		hint       extract.DataPointHint
		capability string
		valueType  ValueType
		transform  *ValueTransform
		confidence Confidence
	}{
		{
			name:       "on off",
			hint:       extract.DataPointHint{SourceID: "z2m", DPID: 1, Name: "state", Converter: "tuya.valueConverter.onOff"},
			capability: "onoff",
			valueType:  ValueBool,
			confidence: ConfidenceMedium,
		},
		{
			name:       "scaled brightness",
			hint:       extract.DataPointHint{SourceID: "z2m", DPID: 2, Name: "brightness", Converter: "tuya.valueConverter.scale0_254to0_1000"},
			capability: "dim",
			valueType:  ValueNumber,
			transform:  &ValueTransform{Max: 1000},
			confidence: ConfidenceMedium,
		},
		{
			name:       "gang suffix",
			hint:       extract.DataPointHint{SourceID: "z2m", DPID: 2, Name: "state_l2", Converter: "tuya.valueConverter.onOff"},
			capability: "onoff_2",
			valueType:  ValueBool,
			confidence: ConfidenceMedium,
		},
		{
			name:       "converter transform overrides name default",
			hint:       extract.DataPointHint{SourceID: "z2m", DPID: 1, Name: "temperature", Converter: "tuya.valueConverter.divideBy100"},
			capability: "measure_temperature",
			valueType:  ValueNumber,
			transform:  &ValueTransform{Divide: 100},
			confidence: ConfidenceMedium,
		},
		{
			name:       "unknown name",
			hint:       extract.DataPointHint{SourceID: "z2m", DPID: 101, Name: "mystery_mode"},
			valueType:  ValueNumber,
			confidence: ConfidenceLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeHint("dimmer", tt.hint)
			if got.CategoryID != "dimmer" || got.DPID != tt.hint.DPID || got.Name != tt.hint.Name {
				t.Errorf("identity = %q/%d/%q", got.CategoryID, got.DPID, got.Name)
			}
			if got.Capability != tt.capability {
				t.Errorf("Capability = %q, want %q", got.Capability, tt.capability)
			}
			if got.ValueType != tt.valueType {
				t.Errorf("ValueType = %q, want %q", got.ValueType, tt.valueType)
			}
			if !got.Transform.Equal(tt.transform) {
				t.Errorf("Transform = %+v, want %+v", got.Transform, tt.transform)
			}
			if got.Confidence != tt.confidence {
				t.Errorf("Confidence = %q, want %q", got.Confidence, tt.confidence)
			}
			if !slices.Equal(got.Sources, []string{tt.hint.SourceID}) {
				t.Errorf("Sources = %v", got.Sources)
			}
		})
	}
}

func TestDatabase_AddResolvesConflicts(t *testing.T) {
	db := NewDefaultDatabase()
	before := db.Len()

	scraped := NormalizeHint("dimmer", extract.DataPointHint{SourceID: "z2m", DPID: 2, Name: "bright", Converter: "raw"})
	conflict, err := db.Add(scraped)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if !conflict {
		t.Error("Add() conflict = false, want true")
	}
	if db.Len() != before {
		t.Errorf("Len() = %d, want %d", db.Len(), before)
	}
	if db.Conflicts() != 1 {
		t.Errorf("Conflicts() = %d, want 1", db.Conflicts())
	}

	got, ok := db.Lookup("dimmer", 2)
	if !ok {
		t.Fatal("Lookup(dimmer, 2) not found")
	}
	if got.Name != "brightness" || got.Confidence != ConfidenceHigh {
		t.Errorf("curated definition lost: %+v", got)
	}
	if !slices.Equal(got.Sources, []string{SourceExisting, "z2m"}) {
		t.Errorf("Sources = %v", got.Sources)
	}
}

func TestDatabase_NewCategory(t *testing.T) {
	db := NewDatabase()
	for _, dp := range []int{3, 1, 2} {
		if _, err := db.Add(DataPointDefinition{CategoryID: "fan", DPID: dp, ValueType: ValueNumber, Confidence: ConfidenceLow}); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	defs := db.Category("fan")
	if len(defs) != 3 || defs[0].DPID != 1 || defs[2].DPID != 3 {
		t.Errorf("Category(fan) = %+v, want ordered by dp id", defs)
	}
	if cats := db.Categories(); !slices.Equal(cats, []string{"fan"}) {
		t.Errorf("Categories() = %v", cats)
	}
	if _, ok := db.Lookup("fan", 9); ok {
		t.Error("Lookup() found missing dp")
	}
}

func TestDatabase_ExportIsCopy(t *testing.T) {
	db := NewDefaultDatabase()
	exported := db.Export()
	exported["dimmer"][2] = DataPointDefinition{Name: "changed"}

	got, _ := db.Lookup("dimmer", 2)
	if got.Name != "brightness" {
		t.Errorf("Export() aliased internal state: %+v", got)
	}
}

func TestDatabase_AddInvalid(t *testing.T) {
	db := NewDatabase()
	tests := map[string]DataPointDefinition{
		"no category":   {DPID: 1, ValueType: ValueBool},
		"bad valuetype": {CategoryID: "x", DPID: 1, ValueType: "float"},
	}
	for name, d := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := db.Add(d); !errors.Is(err, ErrInvalidDefinition) {
				t.Errorf("Add() error = %v, want ErrInvalidDefinition", err)
			}
		})
	}
}

func TestDefaultDefinitions_Valid(t *testing.T) {
	seen := make(map[Key]bool)
	for _, d := range DefaultDefinitions() {
		if err := validate(d); err != nil {
			t.Errorf("%+v: %v", d.Key(), err)
		}
		if seen[d.Key()] {
			t.Errorf("duplicate default %+v", d.Key())
		}
		seen[d.Key()] = true
		if !d.HasSource(SourceExisting) || d.Confidence != ConfidenceHigh {
			t.Errorf("%+v not curated", d.Key())
		}
	}
}
