package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all financial reference data routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/finance", func(r chi.Router) {
		r.Get("/financials", h.HandleGetFinancials)
		r.Post("/financials", h.HandleUploadFinancials)
		r.Post("/budgets", h.HandleUploadBudgets)
		r.Post("/baseline-sales", h.HandleUploadBaselineSales)
	})
}
