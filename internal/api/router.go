package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Account endpoints (no auth required)
		r.Post("/register", s.handleRegister)
		r.Get("/activate-account", s.handleActivateAccount)
		r.Post("/authenticate", s.handleAuthenticate)
		r.Post("/token", s.handleRefreshToken)
		r.Post("/logout", s.handleLogout)

		// Member routes: valid bearer token plus an activated profile
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Use(s.profileMiddleware)

			r.Route("/profile", func(r chi.Router) {
				r.Get("/", s.handleGetProfile)
				r.Put("/", s.handleUpdateProfile)
				r.Put("/password", s.handleUpdatePassword)
			})

			r.Route("/locations", func(r chi.Router) {
				r.Get("/", s.handleListLocations)
				r.Post("/", s.handleCreateLocation)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetLocation)
					r.Put("/", s.handleUpdateLocation)
					r.Delete("/", s.handleDeleteLocation)
				})
			})

			r.Route("/species", func(r chi.Router) {
				r.Get("/", s.handleListSpecies)
				r.Post("/", s.handleCreateSpecies)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetSpecies)
					r.Put("/", s.handleUpdateSpecies)
					r.Delete("/", s.handleDeleteSpecies)
				})
			})

			r.Route("/animals", func(r chi.Router) {
				r.Get("/", s.handleListAnimals)
				r.Post("/", s.handleCreateAnimal)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetAnimal)
					r.Put("/", s.handleUpdateAnimal)
					r.Delete("/", s.handleDeleteAnimal)
					r.Post("/feedings", s.handleAddFeeding)
				})
			})

			r.Route("/images", func(r chi.Router) {
				r.Get("/", s.handleListImages)
				r.Post("/", s.handleCreateImage)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetImage)
					r.Get("/data", s.handleGetImageData)
					r.Put("/", s.handleUpdateImage)
					r.Delete("/", s.handleDeleteImage)
				})
			})
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Use(s.requireAdmin)

			r.Get("/profiles", s.handleListProfiles)
			r.Get("/profiles/count", s.handleCountProfiles)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
