package httpapi

import (
	"net/http"
	"time"

	"github.com/MrEthical07/linkauth"
)

func (s *Server) setRefreshCookie(w http.ResponseWriter, tokens *linkauth.SessionTokens) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.Name,
		Value:    tokens.RefreshToken,
		Path:     s.cookie.Path,
		Domain:   s.cookie.Domain,
		MaxAge:   int(s.refreshTTL / time.Second),
		Secure:   s.cookie.Secure,
		HttpOnly: true,
		SameSite: s.cookie.SameSite,
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.Name,
		Value:    "",
		Path:     s.cookie.Path,
		Domain:   s.cookie.Domain,
		MaxAge:   -1,
		Secure:   s.cookie.Secure,
		HttpOnly: true,
		SameSite: s.cookie.SameSite,
	})
}

func (s *Server) refreshCookie(r *http.Request) string {
	c, err := r.Cookie(s.cookie.Name)
	if err != nil {
		return ""
	}
	return c.Value
}
