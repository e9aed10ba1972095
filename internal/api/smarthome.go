package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-logic-assistant/internal/fulfillment"
)

// handleSmartHome serves cloud fulfillment.
func (s *Server) handleSmartHome(w http.ResponseWriter, r *http.Request) {
	s.fulfill(w, r, fulfillment.SourceCloud)
}

// handleLocalSmartHome serves fulfillment from the local execution agent.
func (s *Server) handleLocalSmartHome(w http.ResponseWriter, r *http.Request) {
	s.fulfill(w, r, fulfillment.SourceLocal)
}

// fulfill rejects unauthenticated callers before the body is read, so a
// missing bearer is always a 401.
func (s *Server) fulfill(w http.ResponseWriter, r *http.Request, source string) {
	caller, err := s.fulfillment.Gate(r.Header.Get("Authorization"), source)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	var req fulfillment.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, fulfillment.Response{
			Payload: fulfillment.ErrorPayload{ErrorCode: fulfillment.ErrorCode(fulfillment.ErrMalformedRequest)},
		})
		return
	}

	resp, err := s.fulfillment.Dispatch(r.Context(), caller, source, &req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, fulfillment.Response{
			RequestID: req.RequestID,
			Payload:   fulfillment.ErrorPayload{ErrorCode: fulfillment.ErrorCode(err)},
		})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
