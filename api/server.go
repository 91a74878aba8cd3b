/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for HR frontends

ROUTE GROUPS:
  /api/employees/*   Employee registry, balances, leave recording
  /api/leave/*       Reversals
  /api/admin/*       Rollover and manual grants
  /api/compliance/*  Five-day obligation reports
  /api/expiring      Upcoming expirations
  /api/ledger/*      Annual ledger (JSON and statutory CSV)

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
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/grant", h.GetGrantRecommendation)
			r.Post("/{id}/leave", h.RecordLeave)
		})

		// Leave event routes
		r.Route("/leave", func(r chi.Router) {
			r.Post("/{eventID}/reverse", h.ReverseLeave)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/rollover", h.TriggerRollover)
			r.Get("/rollover/runs", h.ListRolloverRuns)
			r.Post("/grants", h.CreateGrant)
		})

		// Compliance and expiry routes
		r.Get("/compliance/{year}", h.GetComplianceReport)
		r.Get("/expiring", h.GetExpiring)

		// Annual ledger routes
		r.Route("/ledger", func(r chi.Router) {
			r.Get("/{year}", h.GetAnnualLedger)
			r.Get("/{year}/csv", h.ExportAnnualLedgerCSV)
		})
	})

	return r
}
