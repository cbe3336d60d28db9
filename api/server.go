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
  4. CORS:       Cross-origin requests for the conversational frontend

ROUTE GROUPS:
  /api/actions/*     Staging, confirmation, cancellation, retry
  /api/clients       Client listing and creation
  /api/categories    Category listing and creation
  /api/projects      Project listing (scoped to a client)
  /api/tax-rates     Tax rate listing and creation
  /api/dates/parse   Natural-language date parsing
  /api/rates         Exchange rate resolution

SECURITY NOTE:
  No authentication middleware. All endpoints are public; tenancy is the
  upstream collaborator's responsibility.

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
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Action lifecycle
		r.Route("/actions", func(r chi.Router) {
			r.Post("/", h.StageAction)
			r.Get("/latest", h.LatestAction)
			r.Get("/{id}", h.GetAction)
			r.Post("/{id}/confirm", h.ConfirmAction)
			r.Post("/{id}/cancel", h.CancelAction)
			r.Post("/{id}/retry", h.RetryAction)
		})

		// Named entities
		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.ListClients)
			r.Post("/", h.CreateClient)
		})
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Post("/", h.CreateCategory)
		})
		r.Get("/projects", h.ListProjects)
		r.Route("/tax-rates", func(r chi.Router) {
			r.Get("/", h.ListTaxRates)
			r.Post("/", h.CreateTaxRate)
		})

		// Utilities
		r.Get("/dates/parse", h.ParseDates)
		r.Get("/rates", h.GetRate)
	})

	return r
}
