// Package identitytest provides an in-process fake OAuth2 provider for tests.
package identitytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/MrEthical07/linkauth/identity"
)

// Server is a fake authorization server. Each registered code can be
// exchanged exactly once for an access token whose user-info document is the
// registered JSON.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	codes     map[string]string
	userinfo  map[string][]byte
	exchanges int
	failFetch bool
}

// NewServer starts a fake provider. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		codes:    make(map[string]string),
		userinfo: make(map[string][]byte),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", s.handleToken)
	mux.HandleFunc("/userinfo", s.handleUserInfo)
	s.Server = httptest.NewServer(mux)
	return s
}

// AddCode registers code so that exchanging it yields rawProfile as the
// user-info document.
func (s *Server) AddCode(code string, rawProfile []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := "at-" + code
	s.codes[code] = token
	s.userinfo[token] = rawProfile
}

// AddGoogleUser is a shortcut for AddCode with a Google-shaped document.
func (s *Server) AddGoogleUser(code, sub, email, name string) {
	raw, _ := json.Marshal(map[string]string{
		"sub":     sub,
		"email":   email,
		"name":    name,
		"picture": "https://example.test/" + sub + ".png",
	})
	s.AddCode(code, raw)
}

// FailFetch makes the user-info endpoint return 500.
func (s *Server) FailFetch(fail bool) {
	s.mu.Lock()
	s.failFetch = fail
	s.mu.Unlock()
}

// Exchanges returns how many token requests were received.
func (s *Server) Exchanges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchanges
}

// ProviderConfig returns a client registration pointing at the fake server.
func (s *Server) ProviderConfig() identity.ProviderConfig {
	return identity.ProviderConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://app.example.test/oauth/callback",
		AuthURL:      s.URL + "/authorize",
		TokenURL:     s.URL + "/token",
		UserInfoURL:  s.URL + "/userinfo",
		EmailsURL:    s.URL + "/emails",
	}
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	code := r.PostForm.Get("code")

	s.mu.Lock()
	s.exchanges++
	token, ok := s.codes[code]
	delete(s.codes, code)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) <= len(prefix) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	raw, ok := s.userinfo[auth[len(prefix):]]
	fail := s.failFetch
	s.mu.Unlock()

	if fail {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}
