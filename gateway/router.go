package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes constructs the gateway router. Auth endpoints live under /.auth,
// API traffic is proxied to the backend, and anything else goes to the
// frontend when one is configured.
func (a *App) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/.auth", func(r chi.Router) {
		r.Get("/me", a.handleAuthMe)
		r.Get("/login", a.handleLogin)
		r.Get("/login/{provider}", a.handleLogin)
		r.Get("/callback/{provider}", a.handleCallback)
		r.Get("/logout", a.handleLogout)
	})

	r.Handle("/api", a.api)
	r.Handle("/api/*", a.api)

	if a.frontend != nil {
		r.Handle("/*", a.frontend)
	} else {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"service":"sale-tracker-gateway","auth":"/.auth/me"}`))
		})
	}

	return r
}
