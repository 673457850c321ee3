// internal/app/features/courseview/routes.go
package courseview

import "github.com/go-chi/chi/v5"

// MountRoutes registers the course view hook. Guests are allowed through;
// the engine answers them with guest_user.
func MountRoutes(r chi.Router, h *Handler) {
	r.Post("/courses/{courseID}/view", h.ServeView)
}
