// Package resilience provides the fault-tolerance primitives used around
// operation handlers: exponential backoff with jitter, blocking retry,
// circuit breaking, token-bucket rate limiting and bulkhead isolation.
//
// The scheduler schedules retries on timers itself and only borrows Backoff
// from this package; Retry is for callers that can afford to block, such as
// connection setup.
package resilience
