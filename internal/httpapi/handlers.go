package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/linkauth"
	authmw "github.com/MrEthical07/linkauth/middleware"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
}

func newTokenResponse(t *linkauth.SessionTokens) tokenResponse {
	return tokenResponse{
		AccessToken: t.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   t.AccessExpiresAt,
		UserID:      t.UserID,
	}
}

// decodeJSON reads a single JSON object. An empty body is allowed when
// optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ping(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	tokens, err := s.svc.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.setRefreshCookie(w, tokens)
	writeJSON(w, http.StatusCreated, newTokenResponse(tokens))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		s.writeError(w, r, fmt.Errorf("%w: email and password are required", errBadRequest))
		return
	}
	tokens, err := s.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.setRefreshCookie(w, tokens)
	writeJSON(w, http.StatusOK, newTokenResponse(tokens))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token := s.refreshCookie(r)
	if token == "" {
		s.writeError(w, r, linkauth.ErrUnauthorized)
		return
	}
	tokens, err := s.svc.Refresh(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, linkauth.ErrTokenExpired):
			s.clearRefreshCookie(w)
			err = fmt.Errorf("%w: %v", errSessionExpired, err)
		case errors.Is(err, linkauth.ErrTokenMismatch):
			s.clearRefreshCookie(w)
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(tokens))
}

// handleLogout ends the cookie's session. An unknown or expired cookie is
// still answered with 204 and cleared.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := s.refreshCookie(r); token != "" {
		userID, jti, err := s.svc.SessionFromRefresh(r.Context(), token)
		switch {
		case err == nil:
			if err := s.svc.Logout(r.Context(), userID, jti); err != nil {
				s.writeError(w, r, err)
				return
			}
		case errors.Is(err, linkauth.ErrBackendUnavailable), errors.Is(err, linkauth.ErrEngineNotReady):
			s.writeError(w, r, err)
			return
		}
	}
	s.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	principal, _ := authmw.PrincipalFromContext(r.Context())
	n, err := s.svc.LogoutAll(r.Context(), principal.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, map[string]int{"revoked": n})
}

type deleteAccountRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	var req deleteAccountRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	principal, _ := authmw.PrincipalFromContext(r.Context())
	if err := s.svc.DeleteAccount(r.Context(), principal.UserID, req.Password); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
