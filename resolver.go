package linkauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/linkauth/account"
	"github.com/MrEthical07/linkauth/identity"
	"go.uber.org/zap"
)

// resolveIdentity maps a provider profile to a local user outside link mode.
//
//  1. A link for (provider, providerUserID) logs its user in.
//  2. Otherwise an existing user with the profile email is a conflict and
//     nothing is written.
//  3. Otherwise a user, an empty credential and the link are created together.
func (e *Engine) resolveIdentity(ctx context.Context, profile identity.Profile) (*account.User, Resolution, error) {
	link, err := e.accounts.LinkByProviderUserID(ctx, string(profile.Provider), profile.ProviderUserID)
	switch {
	case err == nil:
		return e.loginViaLink(ctx, link, profile)
	case !errors.Is(err, ErrNotFound):
		return nil, "", backendError(err)
	}

	if profile.Email == "" {
		return nil, "", ErrProfileIncomplete
	}
	if _, err := e.accounts.UserByEmail(ctx, profile.Email); err == nil {
		return nil, "", ErrDifferentAccountConflict
	} else if !errors.Is(err, ErrNotFound) {
		return nil, "", backendError(err)
	}

	now := e.now()
	user := &account.User{
		ID:        account.NewID(),
		Email:     profile.Email,
		Status:    account.StatusActive,
		CreatedAt: now,
	}
	newLink := linkFromProfile(user.ID, profile)
	err = e.accounts.CreateAccount(ctx, user, &account.Credential{}, newLink)
	if err == nil {
		return user, ResolutionSignup, nil
	}
	if !errors.Is(err, ErrDuplicate) {
		return nil, "", backendError(err)
	}

	// A concurrent callback won the race. If it created this identity's
	// link we log in through it; otherwise the email is now taken.
	link, lerr := e.accounts.LinkByProviderUserID(ctx, string(profile.Provider), profile.ProviderUserID)
	if lerr == nil {
		return e.loginViaLink(ctx, link, profile)
	}
	if !errors.Is(lerr, ErrNotFound) {
		return nil, "", backendError(lerr)
	}
	return nil, "", ErrDifferentAccountConflict
}

func (e *Engine) loginViaLink(ctx context.Context, link *account.OAuthLink, profile identity.Profile) (*account.User, Resolution, error) {
	user, err := e.accounts.UserByID(ctx, link.UserID)
	if err != nil {
		return nil, "", backendError(err)
	}
	if !user.Active() {
		return nil, "", ErrAccountDisabled
	}

	if snapshotChanged(link, profile) {
		link.Email = profile.Email
		link.Name = profile.Name
		link.AvatarURL = profile.AvatarURL
		if err := e.accounts.UpdateLinkSnapshot(ctx, link); err != nil {
			e.logger.Warn("refresh oauth link snapshot",
				zap.String("user_id", link.UserID),
				zap.String("provider", link.Provider),
				zap.Error(err),
			)
		}
	}
	return user, ResolutionLogin, nil
}

func snapshotChanged(link *account.OAuthLink, profile identity.Profile) bool {
	return link.Email != profile.Email || link.Name != profile.Name || link.AvatarURL != profile.AvatarURL
}

func linkFromProfile(userID string, profile identity.Profile) *account.OAuthLink {
	return &account.OAuthLink{
		Provider:       string(profile.Provider),
		ProviderUserID: profile.ProviderUserID,
		UserID:         userID,
		Email:          profile.Email,
		Name:           profile.Name,
		AvatarURL:      profile.AvatarURL,
	}
}
