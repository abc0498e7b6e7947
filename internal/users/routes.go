package users

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/terratrac/eudr-backend/internal/middleware"
)

// SetupRoutes mounts user administration. Every route requires the admin
// role.
func SetupRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Admin)

	r.Get("/", h.ListHandler)
	r.Post("/", h.CreateHandler)
	r.Get("/{id}", h.GetHandler)
	r.Put("/{id}", h.UpdateHandler)
	r.Delete("/{id}", h.DeleteHandler)

	return r
}
