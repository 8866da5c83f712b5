package authcore

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"authcore/internal"
)

// GenerateCSRFToken rotates the session's anti-forgery secret and
// returns the new token as 64 hex characters. Issuing a token
// invalidates every previously issued one for the session.
func (e *Engine) GenerateCSRFToken(ctx context.Context, sessionID string) (string, error) {
	if e == nil || e.sessionStore == nil {
		return "", ErrEngineNotReady
	}
	if sessionID == "" {
		return "", ErrSessionNotFound
	}

	secret, err := internal.NewCSRFSecret()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if _, err := e.sessionStore.RotateCSRFSecret(ctx, sessionID, secret, e.now()); err != nil {
		return "", translateSessionErr(err)
	}

	e.metricInc(MetricCSRFIssued)
	return internal.EncodeCSRFToken(secret), nil
}

// ValidateCSRFToken compares the presented token against the session's
// current secret in constant time. It reports validity as a bool; the
// error is set only when the backend cannot answer. The lookup does not
// renew the idle window, and a mismatch is recorded as a security
// event.
func (e *Engine) ValidateCSRFToken(ctx context.Context, sessionID, token string) (bool, error) {
	if e == nil || e.sessionStore == nil {
		return false, ErrEngineNotReady
	}
	if sessionID == "" {
		return false, nil
	}

	presented, err := internal.DecodeCSRFToken(token)
	if err != nil {
		e.rejectCSRF(ctx, "", sessionID, "malformed_token")
		return false, nil
	}

	sess, err := e.sessionStore.Get(ctx, sessionID, e.now())
	if err != nil {
		translated := translateSessionErr(err)
		if errors.Is(translated, ErrSessionNotFound) || errors.Is(translated, ErrSessionExpired) {
			e.rejectCSRF(ctx, "", sessionID, "session_gone")
			return false, nil
		}
		return false, translated
	}

	if subtle.ConstantTimeCompare(presented[:], sess.CSRFSecret[:]) != 1 {
		e.rejectCSRF(ctx, sess.UserID, sessionID, "secret_mismatch")
		return false, nil
	}

	return true, nil
}

func (e *Engine) rejectCSRF(ctx context.Context, userID, sessionID, reason string) {
	e.metricInc(MetricCSRFRejected)
	e.emitAudit(ctx, auditEventCSRFMismatch, false, userID, sessionID, ErrCSRFInvalid, func() map[string]string {
		return map[string]string{"reason": reason}
	})
}
