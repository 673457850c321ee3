// internal/app/features/instances/routes.go
package instances

import "github.com/go-chi/chi/v5"

// MountRoutes registers the instance endpoints. Capability checks happen in
// the manager; callers should mount these behind RequireSignedIn.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/courses/{courseID}/instance", h.ServeShow)
	r.Post("/courses/{courseID}/instance", h.ServeAdd)
	r.Post("/courses/{courseID}/created", h.ServeCourseCreated)

	r.Get("/instances", h.ServeList)
	r.Post("/instances/{id}/edit", h.ServeEdit)
	r.Post("/instances/{id}/status", h.ServeStatus)
	r.Post("/instances/{id}/delete", h.ServeDelete)
}
