package authcore

import "errors"

var (
	// ErrInvalidInput reports a malformed request argument.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateUsername reports that the username is already taken.
	ErrDuplicateUsername = errors.New("username already taken")
	// ErrPasswordPolicy reports a password rejected by policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrAuthenticationFailed reports a failed login. Unknown usernames
	// and wrong passwords produce this same error so that login results
	// never reveal which usernames exist.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrAccountLocked reports that the identity is under a brute-force
	// lockout and login was refused without checking credentials.
	ErrAccountLocked = errors.New("account locked")
	// ErrSessionNotFound reports an unknown or idle-expired session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired reports a session past its absolute lifetime.
	ErrSessionExpired = errors.New("session expired")
	// ErrNotAuthenticated reports an operation that requires a logged-in
	// session on an anonymous or missing one.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrCSRFInvalid reports a failed anti-forgery token check.
	ErrCSRFInvalid = errors.New("invalid csrf token")
	// ErrTokenInvalid reports a rejected API access token.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrStoreUnavailable reports a backend failure. Callers must treat
	// it as a denial, never as an implicit pass.
	ErrStoreUnavailable = errors.New("auth backend unavailable")
	// ErrEngineNotReady reports use of an Engine that was not built.
	ErrEngineNotReady = errors.New("engine not initialized")
)
