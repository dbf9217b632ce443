// Package classify maps free-text device descriptors to catalog
// categories.
//
// A Classifier holds an ordered rule table. Input text has its separators
// normalised and known brand tokens removed, then every rule is tried.
// The lowest Priority wins, ties go to the longest matched substring and
// then to table order, so the same text and table always give the same
// category. Unit counts ("2 gang", "3ch", "4 buttons") fill the {n}
// placeholder of the winning category template.
//
// Text that no rule matches is returned unchanged. A miss is not an error.
package classify
