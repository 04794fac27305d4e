package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrEthical07/linkauth"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

var (
	// errBadRequest marks request validation failures raised by the handlers.
	errBadRequest = errors.New("bad request")
	// errSessionExpired is an expired refresh cookie; only a new sign-in helps.
	errSessionExpired = errors.New("session expired")
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

const oauthFailedMessage = "sign-in with the provider failed, please start again"

// errorTable is matched in order with errors.Is.
var errorTable = []errorMapping{
	{errSessionExpired, http.StatusUnauthorized, "session_expired", "session has expired, please sign in again"},
	{linkauth.ErrTokenExpired, http.StatusUnauthorized, "token_expired", "access token expired"},
	{linkauth.ErrTokenMalformed, http.StatusUnauthorized, "token_malformed", "token is not valid"},
	{linkauth.ErrTokenMismatch, http.StatusUnauthorized, "token_revoked", "session has ended, please sign in again"},
	{linkauth.ErrInvalidCredentials, http.StatusUnauthorized, "authentication_failed", "authentication failed"},
	{linkauth.ErrUnauthorized, http.StatusUnauthorized, "authentication_failed", "authentication failed"},
	{linkauth.ErrAccountDisabled, http.StatusUnauthorized, "authentication_failed", "authentication failed"},

	{linkauth.ErrOAuthStateInvalid, http.StatusBadRequest, "oauth_failed", oauthFailedMessage},
	{linkauth.ErrSessionMismatch, http.StatusBadRequest, "oauth_failed", oauthFailedMessage},
	{linkauth.ErrOAuthExchange, http.StatusBadRequest, "oauth_failed", oauthFailedMessage},
	{linkauth.ErrOAuthFetch, http.StatusBadRequest, "oauth_failed", oauthFailedMessage},
	{linkauth.ErrProfileIncomplete, http.StatusBadRequest, "profile_incomplete", "the provider did not share an email address"},

	{linkauth.ErrDifferentAccountConflict, http.StatusConflict, "different_account",
		"an account with this email already exists; sign in to it and link this provider from your settings"},
	{linkauth.ErrProviderAlreadyUsed, http.StatusConflict, "provider_already_used", "this provider account is linked to another user"},
	{linkauth.ErrAlreadyLinked, http.StatusConflict, "already_linked", "a different account of this provider is already linked"},
	{linkauth.ErrEmailTaken, http.StatusConflict, "email_taken", "email is already registered"},

	{linkauth.ErrCannotUnlinkLastAuthMethod, http.StatusBadRequest, "cannot_unlink_last_auth_method", "set a password or link another provider first"},
	{linkauth.ErrNotLinked, http.StatusNotFound, "not_linked", "provider is not linked"},
	{linkauth.ErrUnsupportedProvider, http.StatusNotFound, "unsupported_provider", "unsupported provider"},

	{linkauth.ErrPasswordPolicy, http.StatusBadRequest, "password_policy", "password does not meet the policy"},
	{linkauth.ErrInvalidEmail, http.StatusBadRequest, "bad_request", "invalid email address"},
	{errBadRequest, http.StatusBadRequest, "bad_request", "malformed request"},

	{linkauth.ErrLoginRateLimited, http.StatusTooManyRequests, "rate_limited", "too many attempts, try again later"},
	{linkauth.ErrRefreshRateLimited, http.StatusTooManyRequests, "rate_limited", "too many attempts, try again later"},

	{linkauth.ErrBackendUnavailable, http.StatusServiceUnavailable, "unavailable", "service temporarily unavailable"},
	{linkauth.ErrEngineNotReady, http.StatusServiceUnavailable, "unavailable", "service temporarily unavailable"},
}

var internalError = errorMapping{status: http.StatusInternalServerError, code: "internal_error", message: "internal error"}

func mapError(err error) errorMapping {
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			return m
		}
	}
	return internalError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	m := mapError(err)
	if m.status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, m.status, errorBody{Error: m.code, Message: m.message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
