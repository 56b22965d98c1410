package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the route tree
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", h.ListSubscriptions)
			r.Post("/request", h.RequestSubscription)
			r.Route("/{slug}", func(r chi.Router) {
				r.Get("/", h.GetSubscription)
				r.Get("/letter", h.PreviewLetter)
				r.Get("/email", h.PreviewEmail)
			})
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Get("/{slug}", h.GetCategory)
		})

		r.Post("/render", h.RenderTemplate)
		r.Post("/deregister", h.Deregister)
		r.Get("/verify/{token}", h.Verify)
		r.Post("/dispatch/{token}", h.EnqueueDispatch)
		r.Post("/contact", h.Contact)
	})

	return r
}
