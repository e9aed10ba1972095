package api

import (
	"encoding/json"
	"mime"
	"net/http"
	"net/url"

	"github.com/nerrad567/gray-logic-assistant/internal/audit"
	"github.com/nerrad567/gray-logic-assistant/internal/auth"
)

// Grant types accepted by the token endpoint.
const (
	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"
)

type tokenResponse struct {
	TokenType    string `json:"token_type"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
}

// handleToken serves both grants. Parameters may arrive as a query string,
// a form body or a JSON object; client credentials may also use HTTP Basic.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	params, err := tokenParams(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, oauthError{Error: "invalid_request"})
		return
	}

	clientID, clientSecret := params.Get("client_id"), params.Get("client_secret")
	if id, secret, ok := r.BasicAuth(); ok && clientID == "" {
		clientID, clientSecret = id, secret
	}
	if err := s.auth.ValidateClient(clientID, clientSecret); err != nil {
		s.logger.Warn("token request with invalid client")
		writeAuthError(w, err)
		return
	}

	switch params.Get("grant_type") {
	case grantAuthorizationCode:
		tokens, err := s.auth.ExchangeAuthCode(params.Get("code"), params.Get("redirect_uri"), s.selfURL(r))
		if err != nil {
			s.logger.Info("code exchange rejected", "error", err)
			writeAuthError(w, err)
			return
		}
		s.recordTokenEvent("link")
		s.recordAudit(r, audit.ActionLink, tokens.User, nil)
		writeJSON(w, http.StatusOK, tokenResponse{
			TokenType:    "Bearer",
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
			ExpiresIn:    tokens.ExpiresIn,
		})

	case grantRefreshToken:
		tokens, err := s.auth.RefreshAccessToken(params.Get("refresh_token"))
		if err != nil {
			s.logger.Info("refresh rejected", "error", err)
			writeAuthError(w, err)
			return
		}
		s.recordTokenEvent("refresh")
		s.recordAudit(r, audit.ActionRefresh, tokens.User, nil)
		writeJSON(w, http.StatusOK, tokenResponse{
			TokenType:   "Bearer",
			AccessToken: tokens.AccessToken,
			ExpiresIn:   tokens.ExpiresIn,
		})

	default:
		writeAuthError(w, auth.ErrUnsupportedGrant)
	}
}

func tokenParams(r *http.Request) (url.Values, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, err
		}
		params := r.URL.Query()
		for k, v := range body {
			if str, ok := v.(string); ok {
				params.Set(k, str)
			}
		}
		return params, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return r.Form, nil
}
