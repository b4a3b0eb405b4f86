package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all response-curve routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/curves", func(r chi.Router) {
		r.Get("/", h.HandleGetCurves)
		r.Post("/", h.HandleUploadCurves)
	})
}
