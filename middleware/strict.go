package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/linkauth"
)

// SessionResolver maps a refresh token to its live session. Implemented by
// *linkauth.Engine.
type SessionResolver interface {
	SessionFromRefresh(ctx context.Context, refreshToken string) (userID, jti string, err error)
}

type sessionContextKey struct{}

// SessionFromContext returns the refresh-token jti stored by RequireSession.
func SessionFromContext(ctx context.Context) (string, bool) {
	jti, ok := ctx.Value(sessionContextKey{}).(string)
	return jti, ok && jti != ""
}

// RequireSession must run after RequireAccess. It rejects the request unless
// the cookie named cookieName carries a live refresh token of the principal.
func RequireSession(sessions SessionResolver, cookieName string, onError ErrorHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok || sessions == nil {
				reject(w, r, onError, linkauth.ErrUnauthorized)
				return
			}
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				reject(w, r, onError, linkauth.ErrUnauthorized)
				return
			}

			userID, jti, err := sessions.SessionFromRefresh(r.Context(), cookie.Value)
			if err != nil {
				reject(w, r, onError, err)
				return
			}
			if userID != principal.UserID {
				reject(w, r, onError, linkauth.ErrSessionMismatch)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, jti)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
