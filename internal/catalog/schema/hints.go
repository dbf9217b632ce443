package schema

import (
	"regexp"
	"strings"

	"github.com/nerrad567/gray-logic-catalog/internal/catalog/extract"
)

type capabilityMapping struct {
	capability string
	valueType  ValueType
	transform  *ValueTransform
}

// Known vendor data point names. Names with a gang suffix (_l1, _l2, ...)
// are resolved through gangSuffixRe first.
var knownNames = map[string]capabilityMapping{
	"state":                    {"onoff", ValueBool, nil},
	"switch":                   {"onoff", ValueBool, nil},
	"brightness":               {"dim", ValueNumber, &ValueTransform{Max: 1000}},
	"min_brightness":           {"dim_min", ValueNumber, &ValueTransform{Max: 1000}},
	"max_brightness":           {"dim_max", ValueNumber, &ValueTransform{Max: 1000}},
	"countdown":                {"countdown", ValueNumber, nil},
	"light_type":               {"light_type", ValueEnum, nil},
	"power_on_behavior":        {"power_on_behavior", ValueEnum, nil},
	"backlight_mode":           {"backlight_mode", ValueEnum, nil},
	"child_lock":               {"child_lock", ValueBool, nil},
	"local_temperature":        {"measure_temperature", ValueNumber, &ValueTransform{Divide: 10}},
	"temperature":              {"measure_temperature", ValueNumber, &ValueTransform{Divide: 10}},
	"current_heating_setpoint": {"target_temperature", ValueNumber, &ValueTransform{Divide: 10}},
	"system_mode":              {"thermostat_mode", ValueEnum, nil},
	"preset":                   {"thermostat_mode", ValueEnum, nil},
	"humidity":                 {"measure_humidity", ValueNumber, nil},
	"battery":                  {"measure_battery", ValueNumber, nil},
	"occupancy":                {"alarm_motion", ValueBool, nil},
	"presence":                 {"alarm_motion", ValueBool, nil},
	"contact":                  {"alarm_contact", ValueBool, nil},
	"smoke":                    {"alarm_smoke", ValueBool, nil},
	"water_leak":               {"alarm_water", ValueBool, nil},
	"position":                 {"windowcoverings_set", ValueNumber, &ValueTransform{Max: 100}},
	"power":                    {"measure_power", ValueNumber, nil},
	"voltage":                  {"measure_voltage", ValueNumber, &ValueTransform{Divide: 10}},
	"current":                  {"measure_current", ValueNumber, &ValueTransform{Divide: 1000}},
	"energy":                   {"meter_power", ValueNumber, &ValueTransform{Divide: 100}},
	"color":                    {"light_hue", ValueHexColor, nil},
	"fault":                    {"alarm_fault", ValueBitmap, nil},
}

// Known converter names, matched on the last dotted segment.
var knownConverters = map[string]capabilityMapping{
	"onOff":        {"", ValueBool, nil},
	"trueFalse0":   {"", ValueBool, nil},
	"trueFalse1":   {"", ValueBool, nil},
	"lockUnlock":   {"", ValueBool, nil},
	"raw":          {"", ValueNumber, nil},
	"divideBy10":   {"", ValueNumber, &ValueTransform{Divide: 10}},
	"divideBy100":  {"", ValueNumber, &ValueTransform{Divide: 100}},
	"divideBy1000": {"", ValueNumber, &ValueTransform{Divide: 1000}},

	"scale0_254to0_1000": {"", ValueNumber, &ValueTransform{Max: 1000}},
	"powerOnBehavior":    {"", ValueEnum, nil},
	"lightType":          {"", ValueEnum, nil},
	"backlightMode":      {"", ValueEnum, nil},
	"colorHSV":           {"", ValueHexColor, nil},
	"faultAlarm":         {"", ValueBitmap, nil},
}

var gangSuffixRe = regexp.MustCompile(`^(.+)_l(\d+)$`)

// NormalizeHint turns a scraped data point hint into a definition for the
// given category.
//
// A known name gives the capability; a known converter gives the value
// type and transform and overrides the name's defaults. Both known yields
// medium confidence, otherwise low.
func NormalizeHint(categoryID string, h extract.DataPointHint) DataPointDefinition {
	def := DataPointDefinition{
		CategoryID: categoryID,
		DPID:       h.DPID,
		Name:       h.Name,
		ValueType:  ValueNumber,
		Confidence: ConfidenceLow,
		Sources:    []string{h.SourceID},
	}

	name, gang := splitGang(h.Name)
	nameMapping, nameKnown := knownNames[name]
	if nameKnown {
		def.Capability = nameMapping.capability
		if gang != "" && gang != "1" {
			def.Capability += "_" + gang
		}
		def.ValueType = nameMapping.valueType
		def.Transform = copyTransform(nameMapping.transform)
	}

	conv, convKnown := knownConverters[converterName(h.Converter)]
	if convKnown {
		def.ValueType = conv.valueType
		if conv.transform != nil {
			def.Transform = copyTransform(conv.transform)
		}
	}

	if nameKnown && convKnown {
		def.Confidence = ConfidenceMedium
	}
	return def
}

// splitGang splits "state_l2" into ("state", "2").
func splitGang(name string) (string, string) {
	if m := gangSuffixRe.FindStringSubmatch(name); m != nil {
		return m[1], m[2]
	}
	return name, ""
}

// converterName returns the last dotted segment of a converter reference.
func converterName(ref string) string {
	if i := strings.LastIndexByte(ref, '.'); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

func copyTransform(t *ValueTransform) *ValueTransform {
	if t == nil {
		return nil
	}
	out := *t
	return &out
}
