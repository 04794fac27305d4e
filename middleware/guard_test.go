package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrEthical07/linkauth"
)

type fakeAuth struct {
	token string
	err   error
}

func (f fakeAuth) Authenticate(_ context.Context, token string) (*linkauth.Principal, error) {
	if f.err != nil {
		return nil, f.err
	}
	if token != f.token {
		return nil, linkauth.ErrTokenMalformed
	}
	return &linkauth.Principal{UserID: "u1", ExpiresAt: time.Unix(1700000000, 0)}, nil
}

type fakeSessions map[string]string

func (f fakeSessions) SessionFromRefresh(_ context.Context, token string) (string, string, error) {
	user, ok := f[token]
	if !ok {
		return "", "", linkauth.ErrTokenMismatch
	}
	return user, "jti-" + token, nil
}

func echoPrincipal() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(p.UserID))
	})
}

func TestRequireAccess(t *testing.T) {
	handler := RequireAccess(fakeAuth{token: "good"}, nil)(echoPrincipal())

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"bad token", "Bearer bad", http.StatusUnauthorized},
		{"good token", "Bearer good", http.StatusOK},
		{"lower-case scheme", "bearer good", http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			if tc.status == http.StatusOK && rec.Body.String() != "u1" {
				t.Fatalf("expected principal u1, got %q", rec.Body.String())
			}
		})
	}
}

func TestRequireAccessPassesErrorToHandler(t *testing.T) {
	var got error
	onError := func(w http.ResponseWriter, _ *http.Request, err error) {
		got = err
		w.WriteHeader(http.StatusTeapot)
	}
	handler := RequireAccess(fakeAuth{err: linkauth.ErrTokenExpired}, onError)(echoPrincipal())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot || !errors.Is(got, linkauth.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired through onError, got %d %v", rec.Code, got)
	}
}

func TestRequireSession(t *testing.T) {
	sessions := fakeSessions{"rt-u1": "u1", "rt-u2": "u2"}
	var gotErr error
	onError := func(w http.ResponseWriter, _ *http.Request, err error) {
		gotErr = err
		w.WriteHeader(http.StatusUnauthorized)
	}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jti, ok := SessionFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(jti))
	})
	handler := RequireAccess(fakeAuth{token: "good"}, onError)(RequireSession(sessions, "refresh_token", onError)(inner))

	serve := func(cookie string) *httptest.ResponseRecorder {
		gotErr = nil
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer good")
		if cookie != "" {
			req.AddCookie(&http.Cookie{Name: "refresh_token", Value: cookie})
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := serve(""); rec.Code != http.StatusUnauthorized || !errors.Is(gotErr, linkauth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized without cookie, got %d %v", rec.Code, gotErr)
	}
	if rec := serve("rt-unknown"); rec.Code != http.StatusUnauthorized || !errors.Is(gotErr, linkauth.ErrTokenMismatch) {
		t.Fatalf("expected ErrTokenMismatch, got %d %v", rec.Code, gotErr)
	}
	if rec := serve("rt-u2"); rec.Code != http.StatusUnauthorized || !errors.Is(gotErr, linkauth.ErrSessionMismatch) {
		t.Fatalf("expected ErrSessionMismatch, got %d %v", rec.Code, gotErr)
	}
	rec := serve("rt-u1")
	if rec.Code != http.StatusOK || rec.Body.String() != "jti-rt-u1" {
		t.Fatalf("expected jti-rt-u1, got %d %q", rec.Code, rec.Body.String())
	}
}
