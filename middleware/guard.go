package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/linkauth"
)

// Authenticator verifies access tokens. Implemented by *linkauth.Engine.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*linkauth.Principal, error)
}

// ErrorHandler writes the rejection response. A nil ErrorHandler replies with
// a plain 401.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type principalContextKey struct{}

// PrincipalFromContext returns the principal stored by RequireAccess.
func PrincipalFromContext(ctx context.Context) (*linkauth.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*linkauth.Principal)
	return p, ok
}

// WithPrincipal stores p in ctx. Exposed for handler tests.
func WithPrincipal(ctx context.Context, p *linkauth.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

func RequireAccess(auth Authenticator, onError ErrorHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				reject(w, r, onError, linkauth.ErrEngineNotReady)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				reject(w, r, onError, linkauth.ErrUnauthorized)
				return
			}

			principal, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				reject(w, r, onError, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, onError ErrorHandler, err error) {
	if onError != nil {
		onError(w, r, err)
		return
	}
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
