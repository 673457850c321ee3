// internal/app/features/enrolments/routes.go
package enrolments

import "github.com/go-chi/chi/v5"

// MountRoutes registers the enrolment endpoints under /instances/{id}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/instances/{id}/enrolments", h.ServeList)
	r.Post("/instances/{id}/enrolments/{userID}/status", h.ServeStatus)
	r.Post("/instances/{id}/enrolments/{userID}/unenrol", h.ServeUnenrol)
}
