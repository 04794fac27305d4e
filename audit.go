package linkauth

import (
	"context"
	"errors"
	"io"

	internalaudit "github.com/MrEthical07/linkauth/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is one security-relevant outcome emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink discards events.
type NoOpSink = internalaudit.NoOpSink

// NewChannelSink returns a sink that writes events into a buffered channel.
func NewChannelSink(buffer int) *internalaudit.ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink that writes one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *internalaudit.JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewZapSink returns a sink that logs events through logger.
func NewZapSink(logger *zap.Logger) *internalaudit.ZapSink {
	return internalaudit.NewZapSink(logger)
}

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLoginRateLimited   = "login_rate_limited"
	auditEventRefreshSuccess     = "refresh_success"
	auditEventRefreshInvalid     = "refresh_invalid"
	auditEventRefreshMismatch    = "refresh_mismatch"
	auditEventLogoutSession      = "logout_session"
	auditEventLogoutAll          = "logout_all"
	auditEventSignupSuccess      = "signup_success"
	auditEventSignupDuplicate    = "signup_duplicate"
	auditEventAccountDeleted     = "account_deleted"
	auditEventAccountStatus      = "account_status_change"
	auditEventOAuthLogin         = "oauth_login"
	auditEventOAuthSignup        = "oauth_signup"
	auditEventOAuthConflict      = "oauth_conflict"
	auditEventOAuthStateRejected = "oauth_state_rejected"
	auditEventOAuthProviderError = "oauth_provider_error"
	auditEventLinkCreated        = "link_created"
	auditEventLinkRejected       = "link_rejected"
	auditEventLinkRemoved        = "link_removed"
	auditEventUnlinkRejected     = "unlink_rejected"
)

// AuditErrorCode is the stable error label written into AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrAccountDisabled    AuditErrorCode = "account_disabled"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrTokenMalformed     AuditErrorCode = "token_malformed"
	auditErrTokenMismatch      AuditErrorCode = "token_mismatch"
	auditErrStateInvalid       AuditErrorCode = "state_invalid"
	auditErrSessionMismatch    AuditErrorCode = "session_mismatch"
	auditErrProvider           AuditErrorCode = "provider_failure"
	auditErrConflict           AuditErrorCode = "different_account"
	auditErrProviderUsed       AuditErrorCode = "provider_already_used"
	auditErrAlreadyLinked      AuditErrorCode = "already_linked"
	auditErrNotLinked          AuditErrorCode = "not_linked"
	auditErrLastMethod         AuditErrorCode = "last_auth_method"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func auditErrorCode(err error) AuditErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited), errors.Is(err, ErrRefreshRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrAccountDisabled):
		return auditErrAccountDisabled
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenMalformed):
		return auditErrTokenMalformed
	case errors.Is(err, ErrTokenMismatch):
		return auditErrTokenMismatch
	case errors.Is(err, ErrOAuthStateInvalid):
		return auditErrStateInvalid
	case errors.Is(err, ErrSessionMismatch):
		return auditErrSessionMismatch
	case errors.Is(err, ErrOAuthExchange), errors.Is(err, ErrOAuthFetch):
		return auditErrProvider
	case errors.Is(err, ErrDifferentAccountConflict):
		return auditErrConflict
	case errors.Is(err, ErrProviderAlreadyUsed):
		return auditErrProviderUsed
	case errors.Is(err, ErrAlreadyLinked):
		return auditErrAlreadyLinked
	case errors.Is(err, ErrNotLinked):
		return auditErrNotLinked
	case errors.Is(err, ErrCannotUnlinkLastAuthMethod):
		return auditErrLastMethod
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrDuplicate):
		return auditErrDuplicate
	case errors.Is(err, ErrBackendUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	provider string,
	err error,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: e.clock.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		Provider:  provider,
		Success:   success,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}
	if ip, ua := clientIPFromContext(ctx), userAgentFromContext(ctx); ip != "" || ua != "" {
		event.Metadata = make(map[string]string, 2)
		if ip != "" {
			event.Metadata["ip"] = ip
		}
		if ua != "" {
			event.Metadata["user_agent"] = ua
		}
	}

	e.audit.Emit(ctx, event)
}
