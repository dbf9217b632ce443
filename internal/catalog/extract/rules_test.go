package extract

import (
	"errors"
	"testing"
)

func TestQuirkTupleRule(t *testing.T) {
	text := `
class TuyaDoubleSwitchTO(TuyaSwitch):
    signature = {
        MODELS_INFO: [
            ("_TZE200_7tdtqgwv", "TS0601"),
            ("_TZE200_wunufsil", "TS0601"),
        ],
    }

class TuyaTripleSwitch(TuyaSwitch):
    signature = {
        MODELS_INFO: [("_TZE200_kyfqmmyl", "TS0601"), ("lumi", "lumi.switch")],
    }
`
	acc := NewResult()
	if err := (QuirkTupleRule{Prefixes: DefaultPrefixes()}).Apply("zha", text, acc); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if len(acc.Records) != 3 {
		t.Fatalf("Records = %+v, want 3", acc.Records)
	}
	if got := acc.Records[0].Description; got != "Tuya Double Switch TO" {
		t.Errorf("Records[0].Description = %q, want %q", got, "Tuya Double Switch TO")
	}
	if got := acc.Records[2].Description; got != "Tuya Triple Switch" {
		t.Errorf("Records[2].Description = %q, want %q", got, "Tuya Triple Switch")
	}
	if acc.Records[2].SourceID != "zha" {
		t.Errorf("SourceID = %q, want zha", acc.Records[2].SourceID)
	}
}

func TestSplitCamel(t *testing.T) {
	tests := map[string]string{
		"TuyaSingleSwitch":   "Tuya Single Switch",
		"TuyaDoubleSwitchTO": "Tuya Double Switch TO",
		"MoesHY368":          "Moes HY368",
		"ZONNSMARTTV01":      "ZONNSMARTTV01",
		"Tuya_TRV":           "Tuya TRV",
	}
	for in, want := range tests {
		if got := splitCamel(in); got != want {
			t.Errorf("splitCamel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOTAIndexRule_FamiliesAndPartition(t *testing.T) {
	text := `[
		{"fileName": "tuya_switch.ota", "manufacturerCode": 4417, "imageType": 54179, "modelId": "TS011F", "manufacturerName": ["_TZ3000_abc", "_TZ3000_def"]},
		{"fileName": "tuya_old.ota", "manufacturerCode": 4098, "imageType": 1},
		{"fileName": "aqara.ota", "manufacturerCode": 4447, "imageType": 2, "modelId": "lumi.switch.n1aeu1"},
		{"fileName": "philips.ota", "manufacturerCode": 4107, "imageType": 3, "modelId": "LCT015"},
		{"fileName": "no-code.ota", "imageType": 9}
	]`

	acc := NewResult()
	if err := (OTAIndexRule{Families: DefaultFamilies()}).Apply("ota-index", text, acc); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if len(acc.Records) != 4 {
		t.Fatalf("Records = %+v, want 4", acc.Records)
	}

	parts := acc.ByFamily()
	if len(parts["tuya"]) != 3 {
		t.Errorf("tuya family = %+v, want 3 records", parts["tuya"])
	}
	if len(parts["xiaomi"]) != 1 {
		t.Errorf("xiaomi family = %+v, want 1 record", parts["xiaomi"])
	}
	if _, ok := parts["philips"]; ok {
		t.Error("untracked manufacturer code was kept")
	}

	old := acc.Lookup("0x1002", "image-1")
	if old == nil {
		t.Fatalf("entry without names/model not synthesised: %+v", acc.Records)
	}
	if old.Description != "tuya_old" {
		t.Errorf("Description = %q, want tuya_old", old.Description)
	}
}

func TestOTAIndexRule_MalformedJSON(t *testing.T) {
	err := (OTAIndexRule{Families: DefaultFamilies()}).Apply("ota-index", `{"not": "an array"`, NewResult())
	if err == nil {
		t.Fatal("Apply() expected error for malformed JSON")
	}
}

func TestJSONRules_SkipMalformedElements(t *testing.T) {
	tests := []struct {
		name        string
		rule        Rule
		text        string
		wantRecords []string
	}{
		{
			name: "firmware index",
			rule: OTAIndexRule{Families: DefaultFamilies()},
			text: `[
				{"fileName": "tuya_old.ota", "manufacturerCode": 4098, "imageType": 1},
				{"fileName": "bad.ota", "manufacturerCode": "4098", "imageType": 2},
				{"fileName": "tuya_switch.ota", "manufacturerCode": 4417, "modelId": "TS011F", "manufacturerName": ["_TZ3000_abc"]}
			]`,
			wantRecords: []string{"0x1002|image-1", "_TZ3000_abc|TS011F"},
		},
		{
			name: "community database",
			rule: CatalogJSONRule{Prefixes: DefaultPrefixes()},
			text: `[
				{"vendor": "Moes", "model": "ZSS-ZK-THL", "zigbeemodel": ["TS0201", "_TZ3000_fllyghyj"]},
				{"vendor": "Broken", "model": 42, "zigbeemodel": ["TS0001", "_TZ3000_broken01"]},
				{"vendor": "Lidl", "model": "HG06337", "zigbeemodel": ["_TZ3000_kdi2o9m6"]}
			]`,
			wantRecords: []string{"_TZ3000_fllyghyj|TS0201", "_TZ3000_kdi2o9m6|HG06337"},
		},
		{
			name: "issues",
			rule: IssueTextRule{Prefixes: DefaultPrefixes()},
			text: `[
				{"number": 10, "title": "TS0003 _TZ3000_wkr3jqmr"},
				{"number": "eleven", "title": "TS0001 _TZ3000_broken01"},
				{"number": 12, "title": "TS011F _TZ3000_second01"}
			]`,
			wantRecords: []string{"_TZ3000_wkr3jqmr|TS0003", "_TZ3000_second01|TS011F"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := NewResult()
			if err := tt.rule.Apply("src", tt.text, acc); err != nil {
				t.Fatalf("Apply() error = %v", err)
			}

			if len(acc.Records) != len(tt.wantRecords) {
				t.Fatalf("Records = %+v, want %d", acc.Records, len(tt.wantRecords))
			}
			for i, want := range tt.wantRecords {
				if got := acc.Records[i].Key(); got != want {
					t.Errorf("Records[%d] = %s, want %s", i, got, want)
				}
			}

			if len(acc.Errors) != 1 {
				t.Fatalf("Errors = %v, want 1", acc.Errors)
			}
			pe := acc.Errors[0]
			if !errors.Is(pe, ErrParse) {
				t.Error("skipped element should be a ParseError")
			}
			if pe.SourceID != "src" || pe.Rule != tt.rule.Name() {
				t.Errorf("ParseError = %+v", pe)
			}
		})
	}
}

func TestOTAIndexRule_TruncatedArrayKeepsDecodedElements(t *testing.T) {
	text := `[
		{"fileName": "tuya_old.ota", "manufacturerCode": 4098, "imageType": 1},
		{"fileName": "cut.ota", "manufacturerCode": 44`

	acc := NewResult()
	err := (OTAIndexRule{Families: DefaultFamilies()}).Apply("ota-index", text, acc)
	if err == nil {
		t.Fatal("Apply() expected error for truncated array")
	}
	if len(acc.Records) != 1 || acc.Records[0].Key() != "0x1002|image-1" {
		t.Errorf("Records = %+v, want the element before the cut", acc.Records)
	}
}

func TestExtractor_MalformedElementKeepsSource(t *testing.T) {
	e := New(map[string][]Rule{"ota": {OTAIndexRule{Families: DefaultFamilies()}}})
	res := e.Extract("ota-index", "ota", `[
		{"manufacturerCode": 4098, "imageType": 1},
		{"manufacturerCode": "4098"},
		{"manufacturerCode": 4417, "imageType": 2}
	]`)

	if len(res.Records) != 2 {
		t.Fatalf("Records = %+v, want 2", res.Records)
	}
	if len(res.Errors) != 1 {
		t.Errorf("Errors = %v, want 1", res.Errors)
	}
}

func TestCatalogJSONRule(t *testing.T) {
	text := `[
		{"vendor": "Moes", "model": "ZSS-ZK-THL", "title": "Temperature and humidity sensor", "zigbeemodel": ["TS0201", "_TZ3000_fllyghyj", "_TZ3000_0s1izerx"]},
		{"vendor": "IKEA", "model": "E1743", "title": "Tradfri on/off switch", "zigbeemodel": ["TRADFRI on/off switch"]},
		{"vendor": "Lidl", "model": "HG06337", "title": "", "category": "plug", "zigbeemodel": ["_TZ3000_kdi2o9m6"]}
	]`

	acc := NewResult()
	if err := (CatalogJSONRule{Prefixes: DefaultPrefixes()}).Apply("blakadder", text, acc); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if len(acc.Records) != 3 {
		t.Fatalf("Records = %+v, want 3", acc.Records)
	}
	if r := acc.Lookup("_TZ3000_fllyghyj", "TS0201"); r == nil || r.Vendor != "Moes" {
		t.Errorf("moes sensor = %+v", r)
	}
	lidl := acc.Lookup("_TZ3000_kdi2o9m6", "HG06337")
	if lidl == nil || lidl.Description != "plug HG06337" {
		t.Errorf("lidl plug = %+v", lidl)
	}
}

func TestIssueTextRule(t *testing.T) {
	text := `[
		{"number": 10, "title": "Device request: 3 gang switch", "body": "Manufacturer _TZ3000_wkr3jqmr\nModel TS0003\nOther: _TZ3000_zmy4lslw"},
		{"number": 11, "title": "Question about pairing", "body": "Mine is _TZ3000_nomodel01 but no model id"},
		{"number": 12, "title": "Support TS0001 _TZ3000_first001 and TS011F _TZ3000_second01", "body": null}
	]`

	acc := NewResult()
	if err := (IssueTextRule{Prefixes: DefaultPrefixes()}).Apply("github-issues", text, acc); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	want := map[string]string{
		"_TZ3000_wkr3jqmr": "TS0003",
		"_TZ3000_zmy4lslw": "TS0003",
		"_TZ3000_first001": "TS0001",
		"_TZ3000_second01": "TS011F",
	}
	if len(acc.Records) != len(want) {
		t.Fatalf("Records = %+v, want %d", acc.Records, len(want))
	}
	for _, r := range acc.Records {
		if want[r.ManufacturerName] != r.ModelID {
			t.Errorf("%s paired with %s, want %s", r.ManufacturerName, r.ModelID, want[r.ManufacturerName])
		}
	}
	if acc.Records[0].Description != "Device request: 3 gang switch" {
		t.Errorf("Description = %q", acc.Records[0].Description)
	}
}

func TestParseError(t *testing.T) {
	inner := errors.New("unexpected token")
	pe := ParseError{SourceID: "zha", Rule: "quirk-tuple", Err: inner}

	if !errors.Is(pe, ErrParse) {
		t.Error("ParseError should match ErrParse")
	}
	if !errors.Is(pe, inner) {
		t.Error("ParseError should unwrap to inner error")
	}
	if pe.Error() != "parsing zha with quirk-tuple: unexpected token" {
		t.Errorf("Error() = %q", pe.Error())
	}
}

func TestRecord_ClassificationText(t *testing.T) {
	r := Record{Fingerprint: Fingerprint{ModelID: "TS0601"}}
	if r.ClassificationText() != "TS0601" {
		t.Errorf("ClassificationText() = %q", r.ClassificationText())
	}
	r.Model = "TS0601_dimmer"
	if r.ClassificationText() != "TS0601_dimmer" {
		t.Errorf("ClassificationText() = %q", r.ClassificationText())
	}
	r.Description = "Smart dimmer"
	if r.ClassificationText() != "Smart dimmer" {
		t.Errorf("ClassificationText() = %q", r.ClassificationText())
	}
}
