// Package schema holds the canonical capability database: for each
// category, the meaning of every vendor data point id.
//
// Definitions come from two places. Curated defaults are registered with
// the "existing" source at high confidence. Hints scraped from converter
// files are normalised by NormalizeHint at medium or low confidence.
// When two definitions claim the same (category, dpId) key,
// ResolveDataPoint picks the winner and the loser's sources are kept in
// the winner's provenance.
package schema
