// Package password implements the one-way credential hasher used by the
// authentication engine: argon2id with per-hash random salts, serialized
// in PHC string format.
//
// Verification decodes the parameters embedded in the stored hash, so
// hashes produced under older (weaker) settings keep verifying after the
// engine's parameters are raised. Comparison of the derived keys is
// constant time.
package password
