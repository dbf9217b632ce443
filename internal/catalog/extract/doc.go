// Package extract turns raw catalog text into device fingerprints and
// data point hints.
//
// Each source names a rule set. A rule set is an ordered list of pure
// Rules (regular expressions over converter and quirk source files, or
// JSON decoding for firmware indexes, community databases and issue
// trackers). Later rules may back-fill vendor, model and description on
// records created by earlier ones.
//
// A rule that errors or panics is recorded as a ParseError and the rest
// of the set still runs, so one malformed definition never hides the
// other devices in the same file.
package extract
