// Package fusion finds near-duplicate device entries and merges them
// without losing data.
//
// Two entries are duplicates when their ids match after removing a known
// vendor or model-code prefix, after removing a trailing qualifier such as
// "_v2", or outright while they sit in different categories. Unit
// spellings are canonicalised first, so "2_gang" and "2gang" compare
// equal.
//
// The first-seen member of a group is its primary. Merge unions every
// member into the primary and reports the others for retirement. Nothing
// is written here; the caller applies the Result to the corpus as one
// transaction.
package fusion
