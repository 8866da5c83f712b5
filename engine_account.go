package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"authcore/internal/rate"
	"authcore/password"
	"authcore/userstore"
)

const maxUsernameBytes = 64

// CreateUser registers an account. Usernames are unique and matched
// case-sensitively; the raw password must satisfy the configured
// minimum length.
func (e *Engine) CreateUser(ctx context.Context, username, rawPassword string) (*User, error) {
	if e == nil || e.userStore == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}

	if err := validateUsername(username); err != nil {
		return nil, err
	}

	hash, err := e.hasher.Hash(rawPassword)
	if err != nil {
		if errors.Is(err, password.ErrPolicy) {
			return nil, ErrPasswordPolicy
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	record := &userstore.Record{
		UserID:       uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    e.now().Unix(),
	}

	if err := e.userStore.Create(ctx, record); err != nil {
		if errors.Is(err, userstore.ErrDuplicateUsername) {
			e.metricInc(MetricAccountDuplicate)
			e.emitAudit(ctx, auditEventAccountCreated, false, "", "", ErrDuplicateUsername, func() map[string]string {
				return map[string]string{"username": username}
			})
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricAccountCreated)
	e.emitAudit(ctx, auditEventAccountCreated, true, record.UserID, "", nil, func() map[string]string {
		return map[string]string{"username": username}
	})

	return userFromRecord(record), nil
}

// Login authenticates the credentials and binds the caller to a fresh
// session, returning the new session identifier. The previous session
// (anonymous or not) is destroyed, so a login always rotates both the
// session identifier and the CSRF secret.
//
// A locked identity is refused before any credential check. Unknown
// usernames and wrong passwords are indistinguishable in the returned
// error.
func (e *Engine) Login(ctx context.Context, sessionID, username, rawPassword string) (string, error) {
	if e == nil || e.userStore == nil || e.hasher == nil || e.sessionStore == nil {
		return "", ErrEngineNotReady
	}

	ip := clientIPFromContext(ctx)

	locked, err := e.rateLimiter.IsLocked(ctx, username, ip)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if locked {
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditEventLockout, false, "", sessionID, ErrAccountLocked, func() map[string]string {
			return map[string]string{"identifier": username}
		})
		return "", ErrAccountLocked
	}

	if username == "" || rawPassword == "" {
		return "", e.failLogin(ctx, username, "", sessionID, ip, "empty_credentials")
	}

	record, err := e.userStore.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return "", e.failLogin(ctx, username, "", sessionID, ip, "user_not_found")
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	ok, err := e.hasher.Verify(rawPassword, record.PasswordHash)
	if err != nil || !ok {
		return "", e.failLogin(ctx, username, record.UserID, sessionID, ip, "password_mismatch")
	}

	// The counter reset must land before the login is reported as
	// successful; a reset failure denies the login rather than leaving
	// the counter state unknown.
	if err := e.rateLimiter.RecordSuccess(ctx, username, ip); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if e.config.Password.UpgradeOnLogin {
		e.maybeUpgradeHash(ctx, record, rawPassword)
	}
	rawPassword = ""

	sess, err := e.newSession(record.UserID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := e.sessionStore.Save(ctx, sess, e.config.Session.IdleTimeout); err != nil {
		return "", translateSessionErr(err)
	}
	if sessionID != "" {
		if err := e.sessionStore.Delete(ctx, sessionID); err != nil {
			e.logger.Warn().Str("session_id", sessionID).Msg("old session cleanup failed")
		}
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventLoginSuccess, true, record.UserID, sess.SessionID, nil, func() map[string]string {
		return map[string]string{"identifier": username}
	})

	return sess.SessionID, nil
}

// failLogin records the failure with the limiter and emits the matching
// events. It always returns ErrAuthenticationFailed so callers cannot
// tell failure reasons apart.
func (e *Engine) failLogin(ctx context.Context, username, userID, sessionID, ip, reason string) error {
	if err := e.rateLimiter.RecordFailure(ctx, username, ip); err != nil {
		if errors.Is(err, rate.ErrLocked) {
			// This attempt armed the lock; later attempts get
			// ErrAccountLocked up front.
			e.metricInc(MetricLoginLocked)
			e.emitAudit(ctx, auditEventLockout, false, userID, sessionID, ErrAccountLocked, func() map[string]string {
				return map[string]string{"identifier": username}
			})
		} else {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, sessionID, ErrAuthenticationFailed, func() map[string]string {
		return map[string]string{
			"identifier": username,
			"reason":     reason,
		}
	})
	return ErrAuthenticationFailed
}

// maybeUpgradeHash rehashes the password when stored parameters lag the
// configured ones. Best effort; never blocks a successful login.
func (e *Engine) maybeUpgradeHash(ctx context.Context, record *userstore.Record, rawPassword string) {
	needsUpgrade, err := e.hasher.NeedsUpgrade(record.PasswordHash)
	if err != nil || !needsUpgrade {
		return
	}

	upgraded, err := e.hasher.Hash(rawPassword)
	if err != nil {
		e.logger.Warn().Msg("password hash upgrade generation failed")
		return
	}
	if err := e.userStore.UpdatePasswordHash(ctx, record.UserID, upgraded); err != nil {
		e.logger.Warn().Str("user_id", record.UserID).Msg("password hash upgrade update failed")
	}
}

func validateUsername(username string) error {
	if username == "" || len(username) > maxUsernameBytes {
		return ErrInvalidInput
	}
	if strings.TrimSpace(username) != username {
		return ErrInvalidInput
	}
	for _, r := range username {
		if unicode.IsControl(r) {
			return ErrInvalidInput
		}
	}
	return nil
}
