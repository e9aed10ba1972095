package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Account linking
	r.Get("/oauth", s.handleAuthorize)
	r.Post("/oauth", s.handleLogin)
	r.HandleFunc("/token", s.handleToken)

	// Cloud fulfillment
	r.Post("/smarthome", s.handleSmartHome)
	r.Get("/check", s.handleCheck)
	r.Get("/metrics", s.handleMetrics)

	if s.localCfg.Enabled {
		r.Route("/local", s.localRoutes)
	}

	return r
}

// buildLocalRouter serves only the local routes, for the dedicated listener.
func (s *Server) buildLocalRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	r.Route("/local", s.localRoutes)
	return r
}

func (s *Server) localRoutes(r chi.Router) {
	r.Use(s.localOnlyMiddleware)
	r.Post("/smarthome", s.handleLocalSmartHome)
	r.Get("/check", s.handleCheck)
}

// handleCheck answers liveness checks.
func (s *Server) handleCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
