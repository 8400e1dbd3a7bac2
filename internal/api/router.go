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

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// WebSocket upgrade authenticates via single-use ticket, not a
		// bearer header (browsers cannot set headers on WS connects)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// WS ticket requires authentication - caller must be logged in to request a ticket
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Snapshot reads
			r.Get("/snapshot", s.handleGetSnapshot)
			r.Get("/devices", s.handleListDevices)
			r.Get("/matrix", s.handleGetMatrix)

			// Commands (admin only)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)

				r.Post("/refresh", s.handleRefresh)
				r.Post("/matrix", s.handleSetMatrix)
				r.Post("/power", s.handleSetPower)
			})
		})
	})

	return r
}

// handleHealth returns the server health status and the poll scheduler phase.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state, pollErr := s.coord.PollState()

	resp := map[string]any{
		"status":     "ok",
		"version":    s.version,
		"poll_state": string(state),
	}
	if pollErr != nil {
		resp["poll_error"] = pollErr.Error()
	}

	writeJSON(w, http.StatusOK, resp)
}
