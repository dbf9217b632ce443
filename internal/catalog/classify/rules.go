package classify

// Rule maps a pattern to a category.
type Rule struct {
	// Name identifies the rule in classification results and logs.
	Name string

	// Category is the category id template. "{n}" is replaced with the
	// unit count found in the text (default 1).
	Category string

	// Class is the schema category whose data point table applies
	// (switch, dimmer, sensor, ...).
	Class string

	// Pattern is matched case-insensitively anywhere in the cleaned text.
	Pattern string

	// Priority orders rules; lower values win.
	Priority int
}

// DefaultBrands returns vendor tokens stripped before matching.
func DefaultBrands() []string {
	return []string{
		"tuya", "moes", "lidl", "silvercrest", "zemismart", "lonsonho",
		"girier", "avatto", "blitzwolf", "nous", "immax", "aqara",
		"xiaomi", "ikea", "tradfri", "sonoff", "ewelink", "smart life",
	}
}

// DefaultRules returns the standard category rules.
//
// Order and priority are part of the contract: reordering rules with equal
// priority and equal match length changes results.
func DefaultRules() []Rule {
	return []Rule{
		// Dimmers before switches: "dimmer switch" is a dimmer.
		{Name: "dimmer", Category: "dimmer_{n}gang", Class: "dimmer", Pattern: `\bdimm(er|ing|able)\b`, Priority: 10},

		{Name: "radiator_valve", Category: "thermostat_radiator_valve", Class: "thermostat", Pattern: `\b(trv|radiator(\s+valve)?|thermostatic\s+valve)\b`, Priority: 10},
		{Name: "thermostat", Category: "thermostat", Class: "thermostat", Pattern: `\bthermostat\b`, Priority: 20},

		{Name: "smoke", Category: "smoke_detector", Class: "sensor", Pattern: `\bsmoke(\s+(detector|alarm|sensor))?\b`, Priority: 15},
		{Name: "water_leak", Category: "water_leak_sensor", Class: "sensor", Pattern: `\b(water\s+leak|leak|flood)(\s+(detector|sensor))?\b`, Priority: 15},

		{Name: "curtain", Category: "curtain_motor", Class: "cover", Pattern: `\b(curtain|blind|shutter|roller)s?(\s+(motor|module|switch))?\b`, Priority: 20},

		{Name: "temp_humidity", Category: "temp_humidity_sensor", Class: "sensor", Pattern: `\b(temperature|humidity|temp)(\s+(and|&)\s+humidity)?(\s+sensor)?\b`, Priority: 25},
		{Name: "motion", Category: "motion_sensor", Class: "sensor", Pattern: `\b(motion|pir|occupancy|presence)(\s+sensor)?\b`, Priority: 25},
		{Name: "contact", Category: "contact_sensor", Class: "sensor", Pattern: `\b(door|window|contact)(\s+(and|&)\s+window)?(\s+sensor)?\b`, Priority: 30},

		{Name: "plug", Category: "smart_plug", Class: "plug", Pattern: `\b(plug|socket|outlet)s?\b`, Priority: 30},

		// Battery scene controllers before mains wall switches.
		{Name: "scene_switch", Category: "scene_switch_{n}button", Class: "remote", Pattern: `\b(scene|remote|wireless)\s+(switch|button|controller)\b`, Priority: 35},
		{Name: "wall_switch", Category: "wall_switch_{n}gang_ac", Class: "switch", Pattern: `\b(wall\s+)?(touch\s+|light\s+)?switch(es)?\b`, Priority: 40},
		{Name: "relay", Category: "relay_{n}ch", Class: "switch", Pattern: `\b(relay|breaker)(\s+module)?\b`, Priority: 40},

		{Name: "bulb", Category: "light_bulb", Class: "light", Pattern: `\b(bulb|lamp|led\s+strip|light)\b`, Priority: 50},
	}
}
