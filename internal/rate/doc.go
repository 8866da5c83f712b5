// Package rate implements the Redis-backed brute-force lockout limiter
// for login attempts.
//
// # Window and lock semantics
//
// Fixed-window failure counters: INCR + conditional PEXPIRE on first hit.
// When the counter reaches the configured threshold, a separate lock key
// is written with SET NX so that further failures during lockout never
// extend the lock. Key prefixes:
//   - alc:  — login failure counter per identity
//   - all:  — lockout marker per identity
//   - alci: — login failure counter per source IP
//   - alli: — lockout marker per source IP
//
// # What this package must NOT do
//
//   - Decide user-visible error wording (that lives in the root package).
//   - Be imported outside the authcore module.
package rate
