package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-logic-assistant/internal/auth"
)

// oauthError is the RFC 6749 error body.
type oauthError struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeAuthError maps an auth failure to its OAuth error body and status.
// Internal errors never reach the body.
func writeAuthError(w http.ResponseWriter, err error) {
	kind := auth.KindOf(err)
	writeJSON(w, kind.HTTPStatus(), oauthError{Error: kind.String()})
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, oauthError{Error: "server_error"})
}
