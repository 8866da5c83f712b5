// Package authcore is a session-based authentication core: credential
// issuance, login and logout, idle and absolute session timeouts,
// per-session CSRF tokens, brute-force lockout, and an asynchronous
// security event log, all backed by Redis.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface: [Engine], [Builder], [Config], the
// sentinel errors, audit sinks, and metrics. Session encoding, rate
// limiting, password hashing, and the credential store live in
// subpackages and never leak Redis details into the facade.
//
// # Failure posture
//
// Backend unavailability is always a denial. No operation ever reports
// a caller as authenticated, or an identity as unlocked, because the
// store could not be reached.
package authcore
