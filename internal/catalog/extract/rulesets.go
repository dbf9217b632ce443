package extract

import "github.com/nerrad567/gray-logic-catalog/internal/catalog/source"

// DefaultPrefixes are the manufacturer-name prefixes kept by text rules.
func DefaultPrefixes() []string {
	return []string{"_TZ", "_TYZB", "_TYST"}
}

// DefaultRuleSets returns the rule sets for the built-in sources.
//
// Order matters inside a set: back-filling rules run after the rules that
// create the records they enrich.
func DefaultRuleSets(prefixes []string) map[string][]Rule {
	return map[string][]Rule{
		source.RuleSetConverters: {
			FingerprintCallRule{Prefixes: prefixes},
			DefinitionRule{Prefixes: prefixes},
			WhitelabelRule{},
		},
		source.RuleSetQuirks: {
			QuirkTupleRule{Prefixes: prefixes},
		},
		source.RuleSetOTAIndex: {
			OTAIndexRule{Families: DefaultFamilies()},
		},
		source.RuleSetCommunityDB: {
			CatalogJSONRule{Prefixes: prefixes},
		},
		source.RuleSetIssues: {
			IssueTextRule{Prefixes: prefixes},
		},
	}
}
