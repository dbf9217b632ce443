// Package fetch downloads raw catalog material over HTTP(S).
//
// Each Fetch follows redirects by hand, runs under a hard timeout and
// sends a descriptive User-Agent. A token-bucket limiter per host
// (golang.org/x/time/rate) spaces successive requests to the same host,
// which keeps paginated API sources within their published rate limits.
//
// Failures are reported as *NetworkError carrying either the HTTP status
// code or a timeout flag. There are no retries.
package fetch
