/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for operator tooling

ROUTE GROUPS:
  /api/obligations/*   Obligation registration and penalty calculation
  /api/penalties/*     Accrual history
  /api/rates           Interest-rate table administration
  /healthz             Liveness probe
  /metrics             Prometheus scrape endpoint

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public; deploy
  behind the gateway.

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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Obligation routes
		r.Route("/obligations", func(r chi.Router) {
			r.Get("/", h.ListObligations)
			r.Post("/", h.CreateObligation)
			r.Get("/{id}", h.GetObligation)
			r.Get("/{id}/penalties", h.ListObligationPenalties)

			r.Get("/{id}/penalty", h.GetOverduePenalty)
			r.Post("/{id}/penalty/finalize", h.FinalizeOverduePenalty)

			r.Get("/{id}/late-submission", h.GetLateSubmissionPenalty)
			r.Post("/{id}/late-submission/finalize", h.FinalizeLateSubmissionPenalty)
		})

		// Accrual history routes
		r.Route("/penalties", func(r chi.Router) {
			r.Get("/{id}/accruals", h.GetAccruals)
		})

		// Rate table routes
		r.Route("/rates", func(r chi.Router) {
			r.Get("/", h.ListRates)
			r.Post("/", h.ReplaceRates)
		})
	})

	r.Get("/healthz", h.Healthz)
	if h.MetricsHandler != nil {
		r.Handle("/metrics", h.MetricsHandler)
	}

	return r
}
