package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes constructs the HTTP router. Everything under /api requires a
// decodable principal header; the root and health endpoints stay open.
func (a *App) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(a.Logger))
	r.Use(RecoveryMiddleware(a.Logger))
	r.Use(CORSMiddleware(a.Config.Server.AllowedOrigins))

	r.Get("/", a.handleRoot)
	r.Get("/health", a.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(PrincipalMiddleware(a.Logger))

		r.Get("/user", a.handleUserInfo)

		r.Route("/sales", func(r chi.Router) {
			r.Get("/", a.handleListSales)
			r.Post("/", a.handleCreateSale)
			r.Get("/{id}", a.handleGetSale)
			r.Put("/{id}", a.handleUpdateSale)
			r.Delete("/{id}", a.handleDeleteSale)
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/", a.handleDashboardData)
			r.Get("/stats", a.handleDashboardStats)
			r.Get("/recent", a.handleRecentSales)
		})
	})

	return r
}
