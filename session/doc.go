// Package session is the Redis-backed refresh-token store.
//
// Each device session is one key, prefix:userID:jti, holding a compact binary
// record with the SHA-256 of the refresh token. The key's TTL equals the
// token's remaining validity, so Redis expiry and token expiry agree.
//
// The store never sees signing keys and never interprets JWTs; callers pass
// the already verified (userID, jti) pair together with the raw token.
package session
