package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Routes groups the handlers the main server serves. Nil members are
// skipped.
type Routes struct {
	Health   *HealthChecker
	Admin    *AdminHandlers
	Partner  *PartnerHandlers
	Webhooks http.Handler
	Script   http.Handler
	// ShortLinks registers the catch-all short link routes. It runs last so
	// every static route above takes precedence.
	ShortLinks     func(chi.Router)
	AllowedOrigins []string
}

// SetupRoutes builds the main server router.
func SetupRoutes(rt Routes) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	// CORS for the back office SPA; credentials carry the partner cookie.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if rt.Health != nil {
		r.Get("/health", rt.Health.HandleHealth)
		r.Get("/health/live", rt.Health.HandleLiveness)
		r.Get("/health/ready", rt.Health.HandleReadiness)
	}
	if rt.Script != nil {
		r.Method(http.MethodGet, "/static/tracking.js", rt.Script)
	}
	if rt.Webhooks != nil {
		r.Mount("/webhook", rt.Webhooks)
	}

	r.Route("/api", func(r chi.Router) {
		if rt.Admin != nil {
			r.Mount("/admin", rt.Admin.Routes())
		}
		if rt.Partner != nil {
			r.Mount("/partner", rt.Partner.Routes())
		}
	})

	if rt.ShortLinks != nil {
		rt.ShortLinks(r)
	}
	return r
}
