// Package handler runs one command line through the request state machine:
//
//	PARSE -> ACQUIRE -> EXECUTE -> RELEASE -> REPORT
//
// PARSE includes validation and is delegated to package request. ACQUIRE
// takes the target's lock and, for read and empty, the lock on the shared
// output, always target first. RELEASE unwinds in reverse order on every
// path. REPORT returns a [Result]; a request error never escapes as a panic
// and never affects other requests.
//
// The simulated service times (arrival jitter, per-character write delay,
// randomized empty delay) are configurable and can be switched off with
// Config.Instant.
package handler
