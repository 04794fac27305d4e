package linkauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/linkauth/account"
	internalaudit "github.com/MrEthical07/linkauth/internal/audit"
	"github.com/MrEthical07/linkauth/internal/rate"
	"github.com/MrEthical07/linkauth/internal/stores"
	"github.com/MrEthical07/linkauth/jwt"
	"github.com/MrEthical07/linkauth/session"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Engine is the authentication and identity-linking service. It is safe for
// concurrent use once built.
type Engine struct {
	config   Config
	accounts AccountStore
	identity IdentityProvider
	hasher   PasswordHasher
	tokens   *jwt.Manager
	sessions *session.Store
	states   *stores.OAuthStateStore
	limiter  *rate.Limiter
	audit    *internalaudit.Dispatcher
	metrics  *Metrics
	clock    clockwork.Clock
	logger   *zap.Logger
}

// Close flushes pending audit events and stops the dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Ping checks Redis and, when the account store supports it, the relational
// store.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	if _, err := e.sessions.Ping(ctx); err != nil {
		return backendError(err)
	}
	if p, ok := e.accounts.(storePinger); ok {
		if err := p.Ping(ctx); err != nil {
			return backendError(err)
		}
	}
	return nil
}

func (e *Engine) ready() error {
	if e == nil || e.tokens == nil || e.sessions == nil || e.accounts == nil {
		return ErrEngineNotReady
	}
	return nil
}

// Login verifies email and password and opens a new device session.
//
// Unknown email, missing password and wrong password all return
// ErrInvalidCredentials after the same hashing cost.
func (e *Engine) Login(ctx context.Context, email, password string) (*SessionTokens, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	email = account.NormalizeEmail(email)

	if err := e.limiter.CheckLogin(ctx, email); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", "", ErrLoginRateLimited)
			return nil, ErrLoginRateLimited
		}
		return nil, backendError(err)
	}

	user, err := e.accounts.UserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, backendError(err)
		}
		e.verifyDummy(password)
		return nil, e.loginFailed(ctx, email, "")
	}

	cred, err := e.accounts.Credential(ctx, user.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, backendError(err)
	}
	if cred == nil || !cred.HasPassword() {
		e.verifyDummy(password)
		return nil, e.loginFailed(ctx, email, user.ID)
	}

	ok, err := e.hasher.Verify(password, cred.PasswordHash)
	if err != nil || !ok {
		return nil, e.loginFailed(ctx, email, user.ID)
	}

	if !user.Active() {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", "", ErrAccountDisabled)
		return nil, ErrAccountDisabled
	}

	if err := e.limiter.ResetLogin(ctx, email); err != nil {
		e.logger.Warn("reset login counter", zap.Error(err))
	}
	e.upgradeHash(ctx, user.ID, password, cred.PasswordHash)

	tokens, err := e.issueSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, tokens.SessionID, "", nil)
	return tokens, nil
}

func (e *Engine) loginFailed(ctx context.Context, email, userID string) error {
	if err := e.limiter.FailLogin(ctx, email); err != nil {
		e.logger.Warn("count login failure", zap.Error(err))
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, "", "", ErrInvalidCredentials)
	return ErrInvalidCredentials
}

func (e *Engine) verifyDummy(password string) {
	if dv, ok := e.hasher.(dummyVerifier); ok {
		dv.VerifyDummy(password)
	}
}

// upgradeHash rewrites a verified hash produced with weaker parameters.
// Failures are logged and never fail the login.
func (e *Engine) upgradeHash(ctx context.Context, userID, password, hash string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	rc, ok := e.hasher.(rehashChecker)
	if !ok {
		return
	}
	stale, err := rc.NeedsRehash(hash)
	if err != nil || !stale {
		return
	}
	upgraded, err := e.hasher.Hash(password)
	if err != nil {
		e.logger.Warn("rehash password", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if err := e.accounts.UpdatePasswordHash(ctx, userID, upgraded); err != nil {
		e.logger.Warn("store rehashed password", zap.String("user_id", userID), zap.Error(err))
	}
}

// issueSession signs a token pair for userID and persists the refresh token
// under a fresh jti.
func (e *Engine) issueSession(ctx context.Context, userID string) (*SessionTokens, error) {
	access, accessExp, err := e.tokens.IssueAccess(userID)
	if err != nil {
		return nil, err
	}
	refresh, jti, refreshExp, err := e.tokens.IssueRefresh(userID)
	if err != nil {
		return nil, err
	}

	ttl := refreshExp.Sub(e.clock.Now())
	if err := e.sessions.Save(ctx, userID, jti, refresh, ttl); err != nil {
		return nil, backendError(err)
	}
	e.metricInc(MetricSessionCreated)

	return &SessionTokens{
		UserID:           userID,
		SessionID:        jti,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Refresh issues a new access token for a stored refresh token. The refresh
// token itself is returned unchanged and keeps its original expiry.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*SessionTokens, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	claims, err := e.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", "", err)
		return nil, err
	}
	userID, jti := jwt.Subject(claims), jwt.JTI(claims)

	if err := e.limiter.CheckRefresh(ctx, jti); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricRefreshRateLimited)
			return nil, ErrRefreshRateLimited
		}
		return nil, backendError(err)
	}

	ok, err := e.sessions.Validate(ctx, userID, jti, refreshToken)
	if err != nil {
		return nil, backendError(err)
	}
	if !ok {
		e.metricInc(MetricRefreshMismatch)
		e.emitAudit(ctx, auditEventRefreshMismatch, false, userID, jti, "", ErrTokenMismatch)
		return nil, ErrTokenMismatch
	}

	user, err := e.accounts.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrTokenMismatch
		}
		return nil, backendError(err)
	}
	if !user.Active() {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrAccountDisabled
	}

	access, accessExp, err := e.tokens.IssueAccess(userID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, userID, jti, "", nil)
	return &SessionTokens{
		UserID:           userID,
		SessionID:        jti,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: jwt.Expiry(claims),
	}, nil
}

// SessionFromRefresh verifies a refresh token against the store and returns
// the device session it names. It is how the OAuth flow learns who the
// current caller is.
func (e *Engine) SessionFromRefresh(ctx context.Context, refreshToken string) (userID, jti string, err error) {
	if err := e.ready(); err != nil {
		return "", "", err
	}
	claims, err := e.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return "", "", err
	}
	userID, jti = jwt.Subject(claims), jwt.JTI(claims)

	ok, err := e.sessions.Validate(ctx, userID, jti, refreshToken)
	if err != nil {
		return "", "", backendError(err)
	}
	if !ok {
		return "", "", ErrTokenMismatch
	}
	return userID, jti, nil
}

// Logout ends one device session. Logging out twice is not an error.
func (e *Engine) Logout(ctx context.Context, userID, jti string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.sessions.Delete(ctx, userID, jti); err != nil {
		return backendError(err)
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogoutSession, true, userID, jti, "", nil)
	return nil
}

// LogoutAll ends every device session of userID and returns how many were
// removed.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	n, err := e.sessions.DeleteAll(ctx, userID)
	if err != nil {
		return n, backendError(err)
	}
	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, "", "", nil)
	return n, nil
}

// ActiveSessions lists the device-session IDs of userID.
func (e *Engine) ActiveSessions(ctx context.Context, userID string) ([]string, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	jtis, err := e.sessions.ActiveSessions(ctx, userID)
	if err != nil {
		return nil, backendError(err)
	}
	return jtis, nil
}

// Authenticate verifies an access token without touching any store.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	start := e.clock.Now()
	defer e.metricObserve(MetricAuthenticateLatency, start)

	claims, err := e.tokens.ValidateAccess(accessToken)
	if err != nil {
		return nil, err
	}
	return &Principal{
		UserID:    jwt.Subject(claims),
		ExpiresAt: jwt.Expiry(claims),
	}, nil
}

func backendError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrBackendUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

func (e *Engine) now() time.Time {
	return e.clock.Now().UTC()
}
