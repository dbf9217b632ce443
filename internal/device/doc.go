// Package device holds the catalog's device corpus: the deduplicated list
// of DeviceEntry records that the driver tooling consumes.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                          Corpus                              │
//	│                                                              │
//	│  ┌──────────────────┐    ┌──────────────────┐                │
//	│  │      Corpus      │    │    Repository    │                │
//	│  │   (corpus.go)    │───▶│  (repository.go) │                │
//	│  │                  │    │                  │                │
//	│  │ • union upserts  │    │ • SQLite queries │                │
//	│  │ • merge apply    │    │ • JSON columns   │                │
//	│  │ • in-memory cache│    │ • transactions   │                │
//	│  └──────────────────┘    └──────────────────┘                │
//	└──────────────────────────────────────────────────────────────┘
//
// Entries are keyed by (ID, Category). The same ID may briefly exist under
// two categories when sources disagree; fusion reconciles them.
//
// # Growth only
//
// Capabilities, clusters, manufacturer IDs, product IDs and provenance are
// ordered sets that only grow. Upsert unions incoming data into what is
// stored, and ApplyMerge refuses a canonical entry that would drop anything
// held by the entries it retires. Retired entries are archived, not
// deleted, and point at the entry they were merged into.
//
// # Consistency
//
// Every Upsert batch and every merge is one SQLite transaction. The cache
// is changed only after the transaction commits, so a failed write leaves
// the corpus exactly as it was and surfaces as ErrCorpusWrite.
package device
