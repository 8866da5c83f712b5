// Package session implements server-side session state for the
// authentication engine: a compact binary session blob persisted in
// Redis, an idle timeout carried by the key TTL, an absolute lifetime
// deadline carried inside the blob, and Lua scripts that splice the
// mutable tail fields (last-activity, CSRF secret) in place so touch and
// token rotation are atomic per session.
//
// # Blob layout (version 1)
//
//	version(1) | userLen(1) | userID | csrfSecret(32) |
//	createdAt(8 BE) | deadlineAt(8 BE) | lastSeenAt(8 BE)
//
// All mutable fields sit at fixed offsets from the end of the blob; the
// scripts rely on that and must be revised together with the codec.
package session
