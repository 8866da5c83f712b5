package authcore

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess   = "login_success"
	auditEventLoginFailure   = "login_failure"
	auditEventLockout        = "lockout"
	auditEventLogout         = "logout"
	auditEventCSRFMismatch   = "csrf_mismatch"
	auditEventAccountCreated = "account_created"
	auditEventSessionExpired = "session_expired"
)

// AuditErrorCode is the stable error label recorded on events, distinct
// from the Go error text.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrSessionNotFound    AuditErrorCode = "session_not_found"
	auditErrSessionExpired     AuditErrorCode = "session_expired"
	auditErrCSRFInvalid        AuditErrorCode = "csrf_invalid"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		if metadata == nil {
			metadata = map[string]string{}
		}
		metadata["user_agent"] = ua
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrAuthenticationFailed):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrNotAuthenticated):
		return auditErrSessionNotFound
	case errors.Is(err, ErrSessionExpired):
		return auditErrSessionExpired
	case errors.Is(err, ErrCSRFInvalid):
		return auditErrCSRFInvalid
	case errors.Is(err, ErrDuplicateUsername):
		return auditErrDuplicate
	case errors.Is(err, ErrPasswordPolicy), errors.Is(err, ErrInvalidInput):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
