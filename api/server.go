/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/scenarios/*   Run execution and run listing
  /api/cycles/*      Validation, publication, export, governance reads
  /api/plans/*       Plan audit trails
  /api/admin/*       Governance actions

SECURITY NOTE:
  Caller identity arrives pre-authenticated via X-Tenant-ID / X-Actor-ID
  headers; session issuance lives upstream. Role checks happen in the
  domain services, not in middleware.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Tenant-ID", "X-Actor-ID"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/scenarios", func(r chi.Router) {
			r.Post("/{id}/run", h.RunScenario)
			r.Get("/{id}/runs", h.ListRuns)
		})

		r.Route("/cycles", func(r chi.Router) {
			r.Post("/{id}/validate", h.ValidateCycle)
			r.Post("/{id}/publish", h.Publish)
			r.Get("/{id}/publication", h.PublishStatus)
			r.Get("/{id}/export", h.Export)
			r.Get("/{id}/plans", h.ListPlans)
			r.Get("/{id}/closures", h.ListClosures)
		})

		r.Route("/plans", func(r chi.Router) {
			r.Get("/{id}/history", h.PlanHistory)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/actions", h.AdminAction)
		})
	})

	return r
}
