// Package jwt issues and validates short-lived API access tokens bound
// to a user and the session they were minted from. Tokens are bearer
// credentials for non-browser clients; session cookies remain the
// browser-facing surface.
package jwt
