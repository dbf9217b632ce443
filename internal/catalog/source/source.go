package source

import (
	"sort"
	"time"

	"github.com/nerrad567/gray-logic-catalog/internal/infrastructure/config"
)

// Rule set names understood by the extract package.
const (
	RuleSetConverters  = "converters"
	RuleSetQuirks      = "quirks"
	RuleSetOTAIndex    = "ota-index"
	RuleSetCommunityDB = "community-db"
	RuleSetIssues      = "issues"
)

// Source is an external catalog the engine pulls raw descriptors from.
type Source struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Endpoints maps a logical name to a URL. Endpoints are fetched in
	// sorted key order.
	Endpoints map[string]string `json:"endpoints"`

	License    string `json:"license,omitempty"`
	Maintainer string `json:"maintainer,omitempty"`

	RefreshInterval time.Duration `json:"refresh_interval"`

	// LastCheckedAt is nil until the first successful refresh.
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`

	// RuleSet selects the extraction rules applied to this source's text.
	RuleSet string `json:"rule_set"`

	// Pages > 1 makes every endpoint paginated via PageParam.
	Pages     int    `json:"pages,omitempty"`
	PageParam string `json:"page_param,omitempty"`
}

// EndpointNames returns the endpoint keys in fetch order.
func (s Source) EndpointNames() []string {
	names := make([]string, 0, len(s.Endpoints))
	for name := range s.Endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Due reports whether the source is stale at now.
func (s Source) Due(now time.Time) bool {
	if s.LastCheckedAt == nil {
		return true
	}
	return now.Sub(*s.LastCheckedAt) > s.RefreshInterval
}

// clone returns a deep copy so callers cannot mutate registry state.
func (s Source) clone() Source {
	c := s
	if s.Endpoints != nil {
		c.Endpoints = make(map[string]string, len(s.Endpoints))
		for k, v := range s.Endpoints {
			c.Endpoints[k] = v
		}
	}
	if s.LastCheckedAt != nil {
		t := *s.LastCheckedAt
		c.LastCheckedAt = &t
	}
	return c
}

// DefaultSources returns the built-in catalog sources.
func DefaultSources() []Source {
	const day = 24 * time.Hour
	return []Source{
		{
			ID:   "zigbee2mqtt",
			Name: "Zigbee2MQTT device converters",
			Endpoints: map[string]string{
				"tuya": "https://raw.githubusercontent.com/Koenkk/zigbee-herdsman-converters/master/src/devices/tuya.ts",
				"moes": "https://raw.githubusercontent.com/Koenkk/zigbee-herdsman-converters/master/src/devices/moes.ts",
			},
			License:         "MIT",
			Maintainer:      "Koenkk",
			RefreshInterval: day,
			RuleSet:         RuleSetConverters,
		},
		{
			ID:   "zha",
			Name: "ZHA device handlers (quirks)",
			Endpoints: map[string]string{
				"ts0601_switch": "https://raw.githubusercontent.com/zigpy/zha-device-handlers/dev/zhaquirks/tuya/ts0601_switch.py",
				"ts0601_trv":    "https://raw.githubusercontent.com/zigpy/zha-device-handlers/dev/zhaquirks/tuya/ts0601_trv.py",
				"ts0601_sensor": "https://raw.githubusercontent.com/zigpy/zha-device-handlers/dev/zhaquirks/tuya/ts0601_sensor.py",
			},
			License:         "Apache-2.0",
			Maintainer:      "zigpy",
			RefreshInterval: 2 * day,
			RuleSet:         RuleSetQuirks,
		},
		{
			ID:   "ota-index",
			Name: "Zigbee OTA firmware index",
			Endpoints: map[string]string{
				"index": "https://raw.githubusercontent.com/Koenkk/zigbee-OTA/master/index.json",
			},
			License:         "MIT",
			Maintainer:      "Koenkk",
			RefreshInterval: day,
			RuleSet:         RuleSetOTAIndex,
		},
		{
			ID:   "blakadder",
			Name: "Zigbee device compatibility repository",
			Endpoints: map[string]string{
				"devices": "https://zigbee.blakadder.com/assets/devices.json",
			},
			License:         "CC-BY-SA-4.0",
			Maintainer:      "blakadder",
			RefreshInterval: 7 * day,
			RuleSet:         RuleSetCommunityDB,
		},
		{
			ID:   "github-issues",
			Name: "Device requests from issue tracker",
			Endpoints: map[string]string{
				"issues": "https://api.github.com/repos/JohanBendz/com.tuya.zigbee/issues?state=all&per_page=100",
			},
			Maintainer:      "JohanBendz",
			RefreshInterval: 12 * time.Hour,
			RuleSet:         RuleSetIssues,
			Pages:           5,
			PageParam:       "page",
		},
	}
}

// ApplyConfig overlays configured source entries onto base.
//
// An entry whose ID matches a base source replaces only the fields it sets,
// or removes the source when Disabled. Unknown IDs are appended as new sources.
func ApplyConfig(base []Source, overrides []config.SourceConfig) []Source {
	out := make([]Source, 0, len(base)+len(overrides))
	index := make(map[string]int, len(base))
	for _, s := range base {
		index[s.ID] = len(out)
		out = append(out, s.clone())
	}

	disabled := make(map[string]bool)
	for _, o := range overrides {
		if o.Disabled {
			disabled[o.ID] = true
			continue
		}
		i, ok := index[o.ID]
		if !ok {
			index[o.ID] = len(out)
			out = append(out, Source{ID: o.ID})
			i = len(out) - 1
		}
		s := &out[i]
		if o.Name != "" {
			s.Name = o.Name
		}
		if len(o.Endpoints) > 0 {
			s.Endpoints = make(map[string]string, len(o.Endpoints))
			for k, v := range o.Endpoints {
				s.Endpoints[k] = v
			}
		}
		if o.License != "" {
			s.License = o.License
		}
		if o.Maintainer != "" {
			s.Maintainer = o.Maintainer
		}
		if o.RefreshInterval > 0 {
			s.RefreshInterval = o.RefreshInterval
		}
		if o.RuleSet != "" {
			s.RuleSet = o.RuleSet
		}
		if o.Pages > 0 {
			s.Pages = o.Pages
		}
		if o.PageParam != "" {
			s.PageParam = o.PageParam
		}
	}

	if len(disabled) == 0 {
		return out
	}
	kept := out[:0]
	for _, s := range out {
		if !disabled[s.ID] {
			kept = append(kept, s)
		}
	}
	return kept
}
