package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lunasphere/lunasphere-core/internal/auth"
	"github.com/lunasphere/lunasphere-core/internal/site"
)

// buildRouter constructs the HTTP route tree.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	r.Use(s.trackingMiddleware)
	r.Use(s.authMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/", s.handleAPIIndex)

		// Session lifecycle.
		r.Post("/login", s.handleLogin)
		r.Post("/users", s.handleSignup)
		r.Post("/refresh", s.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/logout", s.handleLogout)
			r.Post("/logout-all", s.handleLogoutAll)
			r.Get("/me", s.handleMe)
		})

		// Account directory. The list endpoint degrades for non-admins, so
		// it sits outside the admin guard and decides per request.
		r.Get("/users", s.handleListUsers)
		r.Get("/users/count", s.handleUserCount)

		// Role administration.
		r.Get("/roles", s.handleRoleCatalog)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAnyRole(auth.AdminRoles...))
			r.Post("/users/{username}/check-role", s.handleCheckRole)
			r.Put("/users/{username}/roles", s.handleSetRoles)
			r.Post("/users/{username}/roles", s.handleAddRole)
			r.Delete("/users/{username}/roles/{role}", s.handleRemoveRole)
			r.Put("/users/{username}/status", s.handleSetStatus)
		})

		// Analytics.
		r.Get("/analytics", s.handleGetAnalytics)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAnyRole(auth.AdminRoles...))
			r.Put("/analytics", s.handleUpdateAnalytics)
			r.Get("/visitors", s.handleListVisitors)
		})

		// Services catalog.
		r.Get("/services", s.handleListServices)
		r.With(s.requireAnyRole(auth.AdminRoles...)).Put("/services", s.handleReplaceServices)

		// Contact form.
		r.Post("/contact", s.handleSubmitContact)
		r.With(s.requireAnyRole(auth.AdminRoles...)).Get("/contact", s.handleListContact)

		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			writeNotFound(w, "Endpoint not found")
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		})
	})

	// Everything else is the front end, with SPA fallback.
	r.Handle("/*", site.Handler(s.siteDir))

	return r
}
