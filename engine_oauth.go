package linkauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/linkauth/identity"
	"github.com/MrEthical07/linkauth/internal/stores"
)

// BeginOAuth mints a state token and returns the provider consent URL.
//
// With linkMode set the caller must present a valid refresh token; its
// (userID, jti) are bound into the state so that only the same device session
// can complete the flow, which then links instead of logging in.
func (e *Engine) BeginOAuth(ctx context.Context, provider, refreshToken string, linkMode bool) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	p, err := e.oauthProvider(provider)
	if err != nil {
		return "", err
	}

	var userID, jti string
	if linkMode {
		userID, jti, err = e.SessionFromRefresh(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, ErrBackendUnavailable) {
				return "", err
			}
			return "", ErrUnauthorized
		}
	}

	state, err := e.states.Generate(ctx, string(p), userID, jti)
	if err != nil {
		return "", backendError(err)
	}
	authURL, err := e.identity.AuthCodeURL(p, state)
	if err != nil {
		return "", err
	}

	e.metricInc(MetricOAuthBegin)
	return authURL, nil
}

// CompleteOAuth handles the provider callback. The state is consumed before
// the code is exchanged, so a rejected state never spends the code.
//
// refreshToken is the caller's current refresh cookie, or empty. A bound
// state links the provider identity to the bound user and leaves the session
// alone; an unbound state resolves the identity and opens a new session.
func (e *Engine) CompleteOAuth(ctx context.Context, provider, code, state, refreshToken string) (*OAuthOutcome, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	start := e.clock.Now()
	defer e.metricObserve(MetricOAuthCallbackLatency, start)

	p, err := e.oauthProvider(provider)
	if err != nil {
		return nil, err
	}

	userID, jti, err := e.currentSession(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	record, err := e.consumeState(ctx, p, state, userID, jti)
	if err != nil {
		return nil, err
	}

	profile, err := e.fetchProfile(ctx, p, code)
	if err != nil {
		return nil, err
	}

	if record.Bound() {
		link, err := e.Link(ctx, *record.UserID, profile)
		if err != nil {
			return nil, err
		}
		return &OAuthOutcome{
			Resolution: ResolutionLinked,
			UserID:     link.UserID,
			Provider:   p,
			Link:       &link,
		}, nil
	}

	user, resolution, err := e.resolveIdentity(ctx, profile)
	if err != nil {
		if errors.Is(err, ErrDifferentAccountConflict) {
			e.metricInc(MetricOAuthConflict)
			e.emitAudit(ctx, auditEventOAuthConflict, false, "", "", string(p), err)
		}
		return nil, err
	}

	tokens, err := e.issueSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if resolution == ResolutionSignup {
		e.metricInc(MetricOAuthSignup)
		e.emitAudit(ctx, auditEventOAuthSignup, true, user.ID, tokens.SessionID, string(p), nil)
	} else {
		e.metricInc(MetricOAuthLogin)
		e.emitAudit(ctx, auditEventOAuthLogin, true, user.ID, tokens.SessionID, string(p), nil)
	}

	return &OAuthOutcome{
		Resolution: resolution,
		UserID:     user.ID,
		Provider:   p,
		Tokens:     tokens,
	}, nil
}

// LinkWithCode completes a link-mode flow for an authenticated caller. userID
// comes from the access token and refreshToken from the cookie; the state must
// have been minted by BeginOAuth in link mode from that same session.
func (e *Engine) LinkWithCode(ctx context.Context, userID, provider, code, state, refreshToken string) (OAuthLink, error) {
	if err := e.ready(); err != nil {
		return OAuthLink{}, err
	}
	p, err := e.oauthProvider(provider)
	if err != nil {
		return OAuthLink{}, err
	}

	sessionUser, jti, err := e.SessionFromRefresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrBackendUnavailable) {
			return OAuthLink{}, err
		}
		return OAuthLink{}, ErrUnauthorized
	}

	record, err := e.consumeState(ctx, p, state, userID, jti)
	if err != nil {
		return OAuthLink{}, err
	}
	if !record.Bound() {
		e.stateRejected(ctx, userID, p, ErrOAuthStateInvalid)
		return OAuthLink{}, ErrOAuthStateInvalid
	}
	if sessionUser != userID {
		e.stateRejected(ctx, userID, p, ErrSessionMismatch)
		return OAuthLink{}, ErrSessionMismatch
	}

	profile, err := e.fetchProfile(ctx, p, code)
	if err != nil {
		return OAuthLink{}, err
	}
	return e.Link(ctx, userID, profile)
}

func (e *Engine) oauthProvider(name string) (identity.Provider, error) {
	p, err := identity.ParseProvider(name)
	if err != nil {
		return "", err
	}
	if e.identity == nil || !e.identity.Enabled(p) {
		return "", fmt.Errorf("%w: %q not configured", ErrUnsupportedProvider, p)
	}
	return p, nil
}

// currentSession resolves the refresh cookie of a callback. An invalid or
// revoked cookie is treated as anonymous.
func (e *Engine) currentSession(ctx context.Context, refreshToken string) (string, string, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", "", nil
	}
	userID, jti, err := e.SessionFromRefresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrBackendUnavailable) {
			return "", "", err
		}
		return "", "", nil
	}
	return userID, jti, nil
}

func (e *Engine) consumeState(ctx context.Context, p identity.Provider, state, userID, jti string) (*stores.StateRecord, error) {
	result, record, err := e.states.ValidateAndConsume(ctx, state, string(p), userID, jti)
	if err != nil {
		return nil, backendError(err)
	}
	switch result {
	case stores.StateValid:
		return record, nil
	case stores.StateSessionMismatch:
		e.metricInc(MetricOAuthSessionMismatch)
		e.stateRejected(ctx, userID, p, ErrSessionMismatch)
		return nil, ErrSessionMismatch
	default:
		e.metricInc(MetricOAuthStateInvalid)
		e.stateRejected(ctx, userID, p, ErrOAuthStateInvalid)
		return nil, ErrOAuthStateInvalid
	}
}

func (e *Engine) stateRejected(ctx context.Context, userID string, p identity.Provider, err error) {
	e.emitAudit(ctx, auditEventOAuthStateRejected, false, userID, "", string(p), err)
}

// fetchProfile exchanges code once and loads the profile. Provider errors are
// mapped onto ErrOAuthExchange and ErrOAuthFetch.
func (e *Engine) fetchProfile(ctx context.Context, p identity.Provider, code string) (identity.Profile, error) {
	if strings.TrimSpace(code) == "" {
		return identity.Profile{}, fmt.Errorf("%w: empty code", ErrOAuthExchange)
	}
	profile, err := e.identity.Authenticate(ctx, p, code)
	if err == nil {
		return profile, nil
	}

	var mapped error
	switch {
	case errors.Is(err, identity.ErrExchangeFailed):
		mapped = ErrOAuthExchange
	case errors.Is(err, identity.ErrFetchFailed), errors.Is(err, identity.ErrProfileIncomplete):
		mapped = ErrOAuthFetch
	case errors.Is(err, identity.ErrUnsupportedProvider):
		return identity.Profile{}, err
	default:
		mapped = ErrOAuthFetch
	}
	e.metricInc(MetricOAuthProviderFailure)
	e.emitAudit(ctx, auditEventOAuthProviderError, false, "", "", string(p), mapped)
	return identity.Profile{}, fmt.Errorf("%w: %v", mapped, err)
}
