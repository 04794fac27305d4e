package linkauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/linkauth/account"
	"github.com/MrEthical07/linkauth/identity"
)

// CanUnlink reports whether provider may be removed from a user with the
// given password state and links. It is false when provider is not linked
// and when it is the only remaining way to sign in.
func CanUnlink(hasPassword bool, links []OAuthLink, provider string) bool {
	if !hasLink(links, provider) {
		return false
	}
	return hasPassword || len(links) > 1
}

func hasLink(links []OAuthLink, provider string) bool {
	for _, l := range links {
		if l.Provider == provider {
			return true
		}
	}
	return false
}

// Link attaches profile to userID.
//
// Linking an identity the user already owns returns the existing link.
func (e *Engine) Link(ctx context.Context, userID string, profile identity.Profile) (OAuthLink, error) {
	if err := e.ready(); err != nil {
		return OAuthLink{}, err
	}
	provider := string(profile.Provider)

	existing, err := e.accounts.LinkByProviderUserID(ctx, provider, profile.ProviderUserID)
	switch {
	case err == nil:
		if existing.UserID == userID {
			return *existing, nil
		}
		e.linkRejected(ctx, userID, provider, ErrProviderAlreadyUsed)
		return OAuthLink{}, ErrProviderAlreadyUsed
	case !errors.Is(err, ErrNotFound):
		return OAuthLink{}, backendError(err)
	}

	user, err := e.accounts.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return OAuthLink{}, ErrUnauthorized
		}
		return OAuthLink{}, backendError(err)
	}
	if !user.Active() {
		return OAuthLink{}, ErrAccountDisabled
	}

	links, err := e.accounts.LinksByUser(ctx, userID)
	if err != nil {
		return OAuthLink{}, backendError(err)
	}
	if hasLink(links, provider) {
		e.linkRejected(ctx, userID, provider, ErrAlreadyLinked)
		return OAuthLink{}, ErrAlreadyLinked
	}

	link := linkFromProfile(userID, profile)
	if err := e.accounts.CreateLink(ctx, link); err != nil {
		if !errors.Is(err, ErrDuplicate) {
			return OAuthLink{}, backendError(err)
		}
		return e.relinkAfterRace(ctx, userID, profile)
	}

	e.metricInc(MetricLinkCreated)
	e.emitAudit(ctx, auditEventLinkCreated, true, userID, "", provider, nil)
	return *link, nil
}

// relinkAfterRace classifies a unique violation from a concurrent Link.
func (e *Engine) relinkAfterRace(ctx context.Context, userID string, profile identity.Profile) (OAuthLink, error) {
	provider := string(profile.Provider)
	existing, err := e.accounts.LinkByProviderUserID(ctx, provider, profile.ProviderUserID)
	switch {
	case err == nil && existing.UserID == userID:
		return *existing, nil
	case err == nil:
		e.linkRejected(ctx, userID, provider, ErrProviderAlreadyUsed)
		return OAuthLink{}, ErrProviderAlreadyUsed
	case errors.Is(err, ErrNotFound):
		e.linkRejected(ctx, userID, provider, ErrAlreadyLinked)
		return OAuthLink{}, ErrAlreadyLinked
	default:
		return OAuthLink{}, backendError(err)
	}
}

func (e *Engine) linkRejected(ctx context.Context, userID, provider string, err error) {
	e.metricInc(MetricLinkRejected)
	e.emitAudit(ctx, auditEventLinkRejected, false, userID, "", provider, err)
}

// Unlink removes userID's link for provider. The last-method check and the
// delete run in one store transaction.
func (e *Engine) Unlink(ctx context.Context, userID, provider string) error {
	if err := e.ready(); err != nil {
		return err
	}
	p, err := identity.ParseProvider(provider)
	if err != nil {
		return err
	}

	err = e.accounts.DeleteLink(ctx, userID, string(p), func(cred account.Credential, links []account.OAuthLink) error {
		if !hasLink(links, string(p)) {
			return ErrNotLinked
		}
		if !CanUnlink(cred.HasPassword(), links, string(p)) {
			return ErrCannotUnlinkLastAuthMethod
		}
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrNotLinked), errors.Is(err, ErrNotFound):
		e.metricInc(MetricUnlinkRejected)
		e.emitAudit(ctx, auditEventUnlinkRejected, false, userID, "", string(p), ErrNotLinked)
		return ErrNotLinked
	case errors.Is(err, ErrCannotUnlinkLastAuthMethod):
		e.metricInc(MetricUnlinkRejected)
		e.emitAudit(ctx, auditEventUnlinkRejected, false, userID, "", string(p), err)
		return err
	default:
		return backendError(err)
	}

	e.metricInc(MetricUnlinkSuccess)
	e.emitAudit(ctx, auditEventLinkRemoved, true, userID, "", string(p), nil)
	return nil
}

// CanUnlink loads userID's auth methods and applies the package-level
// CanUnlink predicate.
func (e *Engine) CanUnlink(ctx context.Context, userID, provider string) (bool, error) {
	hasPassword, links, err := e.authMethods(ctx, userID)
	if err != nil {
		return false, err
	}
	return CanUnlink(hasPassword, links, provider), nil
}

// LinkedIdentities lists userID's links, oldest first, each flagged with
// whether it may be unlinked right now.
func (e *Engine) LinkedIdentities(ctx context.Context, userID string) ([]LinkedIdentity, error) {
	hasPassword, links, err := e.authMethods(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]LinkedIdentity, 0, len(links))
	for _, l := range links {
		out = append(out, LinkedIdentity{
			OAuthLink: l,
			CanUnlink: CanUnlink(hasPassword, links, l.Provider),
		})
	}
	return out, nil
}

func (e *Engine) authMethods(ctx context.Context, userID string) (bool, []OAuthLink, error) {
	if err := e.ready(); err != nil {
		return false, nil, err
	}
	cred, err := e.accounts.Credential(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil, ErrUnauthorized
		}
		return false, nil, backendError(err)
	}
	links, err := e.accounts.LinksByUser(ctx, userID)
	if err != nil {
		return false, nil, backendError(err)
	}
	return cred.HasPassword(), links, nil
}
