package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"authcore/internal"
	"authcore/internal/rate"
	"authcore/jwt"
	"authcore/password"
	"authcore/session"
)

// Engine is the authentication facade. Build one with [Builder]; it is
// safe for concurrent use.
type Engine struct {
	config       Config
	sessionStore *session.Store
	rateLimiter  *rate.Limiter
	userStore    UserStore
	hasher       *password.Hasher
	jwtManager   *jwt.Manager
	audit        *auditDispatcher
	metrics      *Metrics
	logger       zerolog.Logger
	clock        func() time.Time
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many security events were dropped under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// StartSession creates a fresh anonymous session and returns its opaque
// identifier. Callers hand the identifier to the client (e.g. as a
// cookie value); all later operations take it back.
func (e *Engine) StartSession(ctx context.Context) (string, error) {
	if e == nil || e.sessionStore == nil {
		return "", ErrEngineNotReady
	}

	sess, err := e.newSession("")
	if err != nil {
		return "", err
	}

	if err := e.sessionStore.Save(ctx, sess, e.config.Session.IdleTimeout); err != nil {
		return "", translateSessionErr(err)
	}

	e.metricInc(MetricSessionCreated)
	return sess.SessionID, nil
}

// IsAuthenticated reports whether the session exists, is within both
// timeouts, and has a user bound to it. The check counts as activity
// and renews the idle window. Missing and expired sessions are false,
// not errors; only backend failures return one.
func (e *Engine) IsAuthenticated(ctx context.Context, sessionID string) (bool, error) {
	if e == nil || e.sessionStore == nil {
		return false, ErrEngineNotReady
	}
	if sessionID == "" {
		return false, nil
	}

	sess, err := e.touchSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionExpired) {
			return false, nil
		}
		return false, err
	}

	return !sess.Anonymous(), nil
}

// CurrentUser resolves the session to its bound account. Anonymous
// sessions return [ErrNotAuthenticated]. The lookup counts as activity.
func (e *Engine) CurrentUser(ctx context.Context, sessionID string) (*User, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}
	if sessionID == "" {
		return nil, ErrNotAuthenticated
	}

	sess, err := e.touchSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Anonymous() {
		return nil, ErrNotAuthenticated
	}

	record, err := e.userStore.FindByID(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return userFromRecord(record), nil
}

// Logout destroys the session. Logging out an unknown or already
// expired session is a no-op.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}
	if sessionID == "" {
		return nil
	}

	// Best-effort user attribution for the event record. Only sessions
	// that actually existed produce a logout event; DEL on an unknown
	// identifier stays out of the security log.
	userID := ""
	existed := false
	if sess, err := e.sessionStore.Get(ctx, sessionID, e.now()); err == nil {
		userID = sess.UserID
		existed = true
	}

	if err := e.sessionStore.Delete(ctx, sessionID); err != nil {
		return translateSessionErr(err)
	}
	if !existed {
		return nil
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, userID, sessionID, nil, nil)
	return nil
}

// touchSession validates and renews the session, translating store
// errors and recording absolute-lifetime expiry as a security event.
func (e *Engine) touchSession(ctx context.Context, sessionID string) (*session.Session, error) {
	sess, err := e.sessionStore.Touch(ctx, sessionID, e.now(), e.config.Session.IdleTimeout)
	if err != nil {
		if errors.Is(err, session.ErrExpired) {
			e.metricInc(MetricSessionExpired)
			e.emitAudit(ctx, auditEventSessionExpired, false, "", sessionID, ErrSessionExpired, nil)
		}
		return nil, translateSessionErr(err)
	}
	return sess, nil
}

// newSession builds an unsaved session bound to userID (empty for
// anonymous) with a fresh identifier and CSRF secret.
func (e *Engine) newSession(userID string) (*session.Session, error) {
	id, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}
	secret, err := internal.NewCSRFSecret()
	if err != nil {
		return nil, err
	}

	now := e.now()
	sess := &session.Session{
		SessionID:  id.String(),
		UserID:     userID,
		CSRFSecret: secret,
		CreatedAt:  now.Unix(),
		LastSeenAt: now.Unix(),
	}
	if e.config.Session.AbsoluteLifetime > 0 {
		sess.DeadlineAt = now.Add(e.config.Session.AbsoluteLifetime).Unix()
	}
	return sess, nil
}

func translateSessionErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrNotFound):
		return ErrSessionNotFound
	case errors.Is(err, session.ErrExpired):
		return ErrSessionExpired
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
