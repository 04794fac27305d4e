// Package linkauth provides password and social sign-in with JWT access
// tokens, per-device refresh tokens stored in Redis, and linking of third-party
// identities to local accounts.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # OAuth flow
//
// [Engine.BeginOAuth] stores a single-use state token and returns the
// provider consent URL. In link mode the state is bound to the (user, jti) of
// the caller's refresh token. [Engine.CompleteOAuth] consumes the state
// atomically, exchanges the code once, and then either links the identity to
// the bound user or resolves it to a login, a signup or
// [ErrDifferentAccountConflict].
//
// # Architecture boundaries
//
// linkauth is the public surface. It exposes [Engine], [Builder], [Config],
// the [AccountStore], [PasswordHasher] and [IdentityProvider] contracts, and
// value types. Redis stores, rate limiting and audit dispatch live under
// internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Speak HTTP; see internal/httpapi and middleware.
//   - Import any sub-package that re-imports linkauth.
package linkauth
