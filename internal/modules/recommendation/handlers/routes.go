package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all recommendation run routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", h.HandleListRuns)
		r.Post("/", h.HandleTriggerRun)
		r.Post("/sync", h.HandleRunSync)
		r.Get("/{runID}", h.HandleGetRun)
		r.Get("/{runID}/scenario", h.HandleGetScenario)
	})
}

func runIDParam(r *http.Request) string {
	return chi.URLParam(r, "runID")
}
