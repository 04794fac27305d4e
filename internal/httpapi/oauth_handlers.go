package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/linkauth"
	authmw "github.com/MrEthical07/linkauth/middleware"
	"github.com/go-chi/chi/v5"
)

type codeRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

func (req codeRequest) validate() error {
	if strings.TrimSpace(req.Code) == "" || strings.TrimSpace(req.State) == "" {
		return fmt.Errorf("%w: code and state are required", errBadRequest)
	}
	return nil
}

type linkResponse struct {
	Provider       string    `json:"provider"`
	ProviderUserID string    `json:"provider_user_id"`
	Email          string    `json:"email,omitempty"`
	Name           string    `json:"name,omitempty"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	LinkedAt       time.Time `json:"linked_at"`
	CanUnlink      *bool     `json:"can_unlink,omitempty"`
}

func newLinkResponse(l linkauth.OAuthLink) linkResponse {
	return linkResponse{
		Provider:       l.Provider,
		ProviderUserID: l.ProviderUserID,
		Email:          l.Email,
		Name:           l.Name,
		AvatarURL:      l.AvatarURL,
		LinkedAt:       l.CreatedAt,
	}
}

type callbackResponse struct {
	Resolution linkauth.Resolution `json:"resolution"`
	*tokenResponse
	Link *linkResponse `json:"link,omitempty"`
}

// handleAuthorize redirects to the provider. link=true starts a link-mode
// flow and needs the refresh cookie.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	linkMode := false
	if v := r.URL.Query().Get("link"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: link must be a boolean", errBadRequest))
			return
		}
		linkMode = parsed
	}

	authURL, err := s.svc.BeginOAuth(r.Context(), chi.URLParam(r, "provider"), s.refreshCookie(r), linkMode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := s.svc.CompleteOAuth(r.Context(), chi.URLParam(r, "provider"), req.Code, req.State, s.refreshCookie(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := callbackResponse{Resolution: out.Resolution}
	if out.Tokens != nil {
		s.setRefreshCookie(w, out.Tokens)
		tr := newTokenResponse(out.Tokens)
		resp.tokenResponse = &tr
	}
	if out.Link != nil {
		lr := newLinkResponse(*out.Link)
		resp.Link = &lr
	}
	status := http.StatusOK
	if out.Resolution == linkauth.ResolutionSignup {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	principal, _ := authmw.PrincipalFromContext(r.Context())
	link, err := s.svc.LinkWithCode(r.Context(), principal.UserID, chi.URLParam(r, "provider"), req.Code, req.State, s.refreshCookie(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newLinkResponse(link))
}

func (s *Server) handleUnlink(w http.ResponseWriter, r *http.Request) {
	principal, _ := authmw.PrincipalFromContext(r.Context())
	if err := s.svc.Unlink(r.Context(), principal.UserID, chi.URLParam(r, "provider")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLinks(w http.ResponseWriter, r *http.Request) {
	principal, _ := authmw.PrincipalFromContext(r.Context())
	identities, err := s.svc.LinkedIdentities(r.Context(), principal.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]linkResponse, 0, len(identities))
	for _, id := range identities {
		lr := newLinkResponse(id.OAuthLink)
		canUnlink := id.CanUnlink
		lr.CanUnlink = &canUnlink
		out = append(out, lr)
	}
	writeJSON(w, http.StatusOK, map[string]any{"links": out})
}
