package products

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers product routes. movements serves GET /{id}/movements when non-nil.
func (h *Handler) MountRoutes(r chi.Router, movements http.HandlerFunc) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/meta/categories", h.Categories)
	r.Get("/{id}", h.Show)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	if movements != nil {
		r.Get("/{id}/movements", movements)
	}
}
