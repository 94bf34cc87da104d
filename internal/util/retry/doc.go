// Package retry provides exponential backoff retry logic for transient failures.
//
// [WithExponentialBackoff] retries an operation until it succeeds, returns an
// error wrapped with [Fatal], runs out of attempts, or reaches an optional
// deadline. Join attempts use the deadline to bound retries by the validity
// window of the join credential instead of by a fixed attempt count.
package retry
