// Package update runs catalog refresh cycles.
//
// An Orchestrator selects due sources from the registry, fetches and
// extracts them concurrently, then ingests each source's records into the
// device corpus in registry order. Data point hints are normalised into
// the schema database, duplicates across the whole active corpus are
// fused, and the resulting Report is handed to every registered Notifier.
//
// A failing source never stops the cycle: its error is recorded in the
// report and the next source is processed. UpdateAll always returns a
// report.
//
// ScheduleAutoUpdates arms one timer per source so each source refreshes
// on its own interval. Corpus-mutating phases of scheduled and manual
// cycles are serialised by a single mutex.
package update
