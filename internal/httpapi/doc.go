// Package httpapi is the JSON-over-HTTP boundary of linkauth.
//
// The access token travels in response bodies and the Authorization header;
// the refresh token only ever travels in an HttpOnly cookie. Every engine
// error is translated through one table in errors.go.
package httpapi
