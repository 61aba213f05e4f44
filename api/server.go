/*
server.go - Route table for the schedule API

PURPOSE:
  Builds the chi router: middleware first, then one route group per
  resource. Handlers live in handlers.go; nothing here touches the store.

MIDDLEWARE (in order):
  Logger      access log line per request
  Recoverer   a panicking handler answers 500, the process keeps running
  RequestID   X-Request-Id for correlating log lines
  CORS        dev frontends on :5173 and :8080

ROUTE GROUPS:
  /api/rules/*          Active rule set, presets
  /api/validate/*       Validate payloads that are not stored
  /api/contracts/*      Contracts, their schedules and terms
  /api/sweeps/*         Overdue sweep history and manual runs
  /api/scenarios/*      Demo data
  /metrics              Prometheus scrape endpoint

There is no authentication layer.

SEE ALSO:
  - handlers.go
  - cmd/server/main.go
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Rule routes
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.GetRules)
			r.Put("/", h.UpdateRules)
			r.Get("/presets", h.ListPresets)
			r.Post("/presets/{id}", h.ApplyPreset)
		})

		// Ad-hoc validation
		r.Route("/validate", func(r chi.Router) {
			r.Post("/", h.ValidateSchedule)
			r.Post("/term", h.ValidateTerm)
		})

		// Contract routes
		r.Route("/contracts", func(r chi.Router) {
			r.Get("/", h.ListContracts)
			r.Post("/", h.CreateContract)
			r.Get("/code-available", h.CodeAvailable)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetContract)
				r.Get("/schedule", h.GetSchedule)
				r.Put("/schedule", h.SubmitSchedule)

				r.Route("/terms", func(r chi.Router) {
					r.Post("/", h.AddTerm)
					r.Post("/reorder", h.ReorderTerms)
					r.Put("/{termID}", h.UpdateTerm)
					r.Delete("/{termID}", h.DeleteTerm)
					r.Post("/{termID}/status", h.ChangeTermStatus)
				})
			})
		})

		// Sweeper routes
		r.Route("/sweeps", func(r chi.Router) {
			r.Get("/", h.ListSweepRuns)
			r.Post("/run", h.TriggerSweep)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
