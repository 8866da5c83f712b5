package authcore

import (
	"context"
	"fmt"
)

// IssueAccessToken mints a short-lived API token bound to an
// authenticated session. Requires JWT support to be enabled in the
// configuration.
func (e *Engine) IssueAccessToken(ctx context.Context, sessionID string) (string, error) {
	if e == nil || e.sessionStore == nil {
		return "", ErrEngineNotReady
	}
	if e.jwtManager == nil {
		return "", ErrEngineNotReady
	}

	sess, err := e.sessionStore.Get(ctx, sessionID, e.now())
	if err != nil {
		return "", translateSessionErr(err)
	}
	if sess.Anonymous() {
		return "", ErrNotAuthenticated
	}

	token, err := e.jwtManager.CreateAccess(sess.UserID, sess.SessionID, e.now())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricTokenIssued)
	return token, nil
}

// ValidateAccessToken checks the token signature and claims, then
// confirms the issuing session is still alive and still bound to the
// same user. A logged-out session therefore kills its tokens early,
// bounded by the token TTL otherwise.
func (e *Engine) ValidateAccessToken(ctx context.Context, tokenStr string) (*User, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}
	if e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.ParseAccess(tokenStr)
	if err != nil {
		e.metricInc(MetricTokenRejected)
		return nil, ErrTokenInvalid
	}

	sess, err := e.sessionStore.Get(ctx, claims.SID, e.now())
	if err != nil {
		e.metricInc(MetricTokenRejected)
		return nil, translateSessionErr(err)
	}
	if sess.UserID != claims.UID {
		e.metricInc(MetricTokenRejected)
		return nil, ErrTokenInvalid
	}

	record, err := e.userStore.FindByID(ctx, claims.UID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return userFromRecord(record), nil
}
