// Package source holds the registry of external device catalogs.
//
// A Registry is built explicitly from a list of Source definitions
// (DefaultSources, optionally overlaid with configuration via ApplyConfig).
// After construction only each source's LastCheckedAt changes, through
// MarkChecked, and a StateStore keeps those timestamps across restarts.
package source
