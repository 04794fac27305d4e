// Package jwt issues and verifies the two token kinds used by linkauth.
//
// Access tokens are short lived and carry only the user ID. Refresh tokens are
// long lived and additionally carry a random jti that names one device session;
// the session store keys revocation state by that jti. Every token carries a
// typ claim, so a refresh token is never accepted as an access token and vice
// versa.
//
// Verification failures are reported as exactly one of two sentinels:
// ErrTokenExpired when the signature is good but exp has passed, and
// ErrTokenMalformed for everything else.
package jwt
