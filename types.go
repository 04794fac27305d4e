package linkauth

import (
	"context"
	"time"

	"github.com/MrEthical07/linkauth/account"
	"github.com/MrEthical07/linkauth/identity"
)

// Re-exported record types so callers of the engine need not import account.
type (
	User       = account.User
	Credential = account.Credential
	OAuthLink  = account.OAuthLink
)

// AccountStore is the relational store behind the engine. Implementations
// must return ErrNotFound for missing rows and wrap ErrDuplicate when an
// insert trips a unique constraint.
//
// storage.Store is the bun-backed implementation.
type AccountStore interface {
	UserByID(ctx context.Context, id string) (*account.User, error)
	UserByEmail(ctx context.Context, email string) (*account.User, error)
	Credential(ctx context.Context, userID string) (*account.Credential, error)
	LinkByProviderUserID(ctx context.Context, provider, providerUserID string) (*account.OAuthLink, error)
	LinksByUser(ctx context.Context, userID string) ([]account.OAuthLink, error)

	// CreateAccount inserts user, cred and an optional first link atomically.
	CreateAccount(ctx context.Context, user *account.User, cred *account.Credential, link *account.OAuthLink) error
	DeleteAccount(ctx context.Context, userID string) error
	SetStatus(ctx context.Context, userID string, status account.Status) error
	UpdatePasswordHash(ctx context.Context, userID, hash string) error

	CreateLink(ctx context.Context, link *account.OAuthLink) error
	UpdateLinkSnapshot(ctx context.Context, link *account.OAuthLink) error
	// DeleteLink removes the link after guard approves the user's current
	// methods, inside one transaction.
	DeleteLink(ctx context.Context, userID, provider string, guard func(cred account.Credential, links []account.OAuthLink) error) error
}

// PasswordHasher hashes and verifies passwords. password.Argon2 implements it.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// storePinger is implemented by account stores that can report their health.
// storage.Store implements it.
type storePinger interface {
	Ping(ctx context.Context) error
}

// dummyVerifier is implemented by hashers that can burn the cost of one
// verification when the user does not exist.
type dummyVerifier interface {
	VerifyDummy(password string)
}

type rehashChecker interface {
	NeedsRehash(encodedHash string) (bool, error)
}

// IdentityProvider runs the Authorization Code grant. identity.Client
// implements it.
type IdentityProvider interface {
	Enabled(p identity.Provider) bool
	AuthCodeURL(p identity.Provider, state string) (string, error)
	Authenticate(ctx context.Context, p identity.Provider, code string) (identity.Profile, error)
}

// SessionTokens is the result of every operation that establishes or extends
// a device session.
type SessionTokens struct {
	UserID           string
	SessionID        string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Principal is the verified identity behind an access token.
type Principal struct {
	UserID    string
	ExpiresAt time.Time
}

// Resolution says how an OAuth callback was reconciled with local accounts.
type Resolution string

const (
	ResolutionLogin  Resolution = "login"
	ResolutionSignup Resolution = "signup"
	ResolutionLinked Resolution = "linked"
)

// OAuthOutcome is the result of CompleteOAuth. Tokens is set for login and
// signup; Link is set when the callback linked an identity to the session's
// user, in which case the existing session is left untouched.
type OAuthOutcome struct {
	Resolution Resolution
	UserID     string
	Provider   identity.Provider
	Tokens     *SessionTokens
	Link       *account.OAuthLink
}

// LinkedIdentity is one provider link with whether it may be removed now.
type LinkedIdentity struct {
	account.OAuthLink
	CanUnlink bool
}
