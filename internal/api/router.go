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

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Device corpus
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/{id}", s.handleGetDevice)
		})

		// Canonical data point schema
		r.Route("/datapoints", func(r chi.Router) {
			r.Get("/", s.handleListDataPoints)
			r.Get("/{category}", s.handleGetCategory)
		})

		r.Get("/sources", s.handleListSources)
		r.Post("/update", s.handleUpdate)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/", s.handleListReports)
			r.Get("/latest", s.handleLatestReport)
			r.Get("/{id}", s.handleGetReport)
		})

		r.Get("/fusions", s.handleListFusions)
		r.Get("/classify", s.handleClassify)

		r.Get(s.wsPath(), s.handleWebSocket)
	})

	return r
}

// wsPath returns the WebSocket route relative to /api/v1.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"devices": s.corpus.Count(),
	})
}
