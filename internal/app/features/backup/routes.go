// internal/app/features/backup/routes.go
package backup

import "github.com/go-chi/chi/v5"

// MountRoutes registers export and restore.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/courses/{courseID}/export", h.ServeExport)
	r.Post("/courses/{courseID}/restore", h.ServeRestore)
}
