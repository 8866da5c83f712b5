package internal

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// SessionID is a 128-bit random session identifier.
type SessionID [16]byte

// CSRFSecretSize is the byte length of a session's anti-forgery secret.
// Hex-encoded tokens are therefore 64 characters.
const CSRFSecretSize = 32

// NewSessionID generates a session identifier from crypto/rand.
func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s SessionID) Bytes() []byte {
	return s[:]
}

func (s SessionID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(s[:])
}

// ParseSessionID decodes the transport form of a session identifier.
func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID

	raw, err := base64.RawURLEncoding.DecodeString(sessionID)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, errors.New("invalid session id size")
	}

	copy(sid[:], raw)
	return sid, nil
}

// NewCSRFSecret generates a fresh per-session anti-forgery secret.
func NewCSRFSecret() ([CSRFSecretSize]byte, error) {
	var secret [CSRFSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// EncodeCSRFToken renders a CSRF secret in its caller-facing hex form.
func EncodeCSRFToken(secret [CSRFSecretSize]byte) string {
	return hex.EncodeToString(secret[:])
}

// DecodeCSRFToken parses a candidate token back into secret bytes.
// Malformed input is reported as an error, never panics.
func DecodeCSRFToken(token string) ([CSRFSecretSize]byte, error) {
	var secret [CSRFSecretSize]byte

	raw, err := hex.DecodeString(token)
	if err != nil {
		return secret, err
	}
	if len(raw) != CSRFSecretSize {
		return secret, errors.New("invalid csrf token size")
	}

	copy(secret[:], raw)
	return secret, nil
}
