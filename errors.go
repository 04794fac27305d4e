package linkauth

import (
	"errors"

	"github.com/MrEthical07/linkauth/account"
	"github.com/MrEthical07/linkauth/identity"
	"github.com/MrEthical07/linkauth/jwt"
)

var (
	// ErrEngineNotReady is returned when an Engine method is called on a nil or
	// partially built engine.
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrInvalidCredentials covers every password login failure so callers
	// cannot tell an unknown email from a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is returned when an authenticated principal is required.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAccountDisabled is returned for users whose status is not active.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrLoginRateLimited is returned once an email has exhausted its login
	// failure budget.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshRateLimited is returned when one device refreshes too often.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrPasswordPolicy is returned when a new password is too short.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrEmailTaken is returned by Signup when the email already has an account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidEmail is returned by Signup for an address that cannot be stored.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrTokenExpired is returned for a correctly signed token past its expiry.
	ErrTokenExpired = jwt.ErrTokenExpired
	// ErrTokenMalformed is returned for any other token verification failure.
	ErrTokenMalformed = jwt.ErrTokenMalformed
	// ErrTokenMismatch is returned when a verified refresh token no longer
	// matches its stored record: revoked, replaced or stolen.
	ErrTokenMismatch = errors.New("refresh token mismatch")

	// ErrOAuthStateInvalid is returned for an unknown, expired, reused or
	// foreign-provider OAuth state.
	ErrOAuthStateInvalid = errors.New("oauth state invalid")
	// ErrSessionMismatch is returned when a bound OAuth state is completed by a
	// different session than the one that started it.
	ErrSessionMismatch = errors.New("oauth state session mismatch")
	// ErrOAuthExchange is returned when the provider rejects the code.
	ErrOAuthExchange = errors.New("oauth code exchange failed")
	// ErrOAuthFetch is returned when the provider profile cannot be loaded.
	ErrOAuthFetch = errors.New("oauth profile fetch failed")
	// ErrUnsupportedProvider is returned for unknown or unconfigured providers.
	ErrUnsupportedProvider = identity.ErrUnsupportedProvider
	// ErrProfileIncomplete is returned when a provider profile lacks the
	// fields needed to create an account.
	ErrProfileIncomplete = identity.ErrProfileIncomplete

	// ErrDifferentAccountConflict is returned when an unlinked provider identity
	// carries the email of an existing account. Nothing is created; the user
	// must log in to that account and link from there.
	ErrDifferentAccountConflict = errors.New("email belongs to a different account")
	// ErrProviderAlreadyUsed is returned when the provider identity is linked to
	// another user.
	ErrProviderAlreadyUsed = errors.New("provider identity linked to another account")
	// ErrAlreadyLinked is returned when the user already has a different
	// identity of the same provider.
	ErrAlreadyLinked = errors.New("provider already linked")
	// ErrNotLinked is returned when unlinking a provider the user has no link for.
	ErrNotLinked = errors.New("provider not linked")
	// ErrCannotUnlinkLastAuthMethod is returned when unlinking would leave the
	// user with no way to sign in.
	ErrCannotUnlinkLastAuthMethod = errors.New("cannot unlink last authentication method")

	// ErrNotFound and ErrDuplicate are the storage-agnostic row errors that an
	// AccountStore must return.
	ErrNotFound  = account.ErrNotFound
	ErrDuplicate = account.ErrDuplicate

	// ErrBackendUnavailable wraps Redis and database failures.
	ErrBackendUnavailable = errors.New("auth backend unavailable")
)
