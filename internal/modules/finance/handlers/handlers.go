// Package handlers provides HTTP handlers for financial reference data.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/reachplan/optimizer/internal/modules/finance"
	"github.com/rs/zerolog"
)

// Handler handles financial reference data HTTP requests.
type Handler struct {
	repo *finance.Repository
	log  zerolog.Logger
}

// NewHandler creates a new finance handler.
func NewHandler(repo *finance.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "finance").Logger(),
	}
}

type financialsPayload struct {
	Region         string  `json:"region"`
	Market         string  `json:"market"`
	Brand          string  `json:"brand"`
	PricePerUnit   float64 `json:"price_per_unit"`
	GrossMarginPct float64 `json:"gross_margin_pct"`
}

type budgetPayload struct {
	Market      string  `json:"market"`
	Brand       string  `json:"brand"`
	TargetSpend float64 `json:"target_spend"`
	TargetSales float64 `json:"target_sales"`
	TargetOpex  float64 `json:"target_opex"`
}

type baselineSalesPayload struct {
	Region     string  `json:"region"`
	Market     string  `json:"market"`
	Brand      string  `json:"brand"`
	SalesValue float64 `json:"sales_value"`
}

// HandleUploadFinancials handles POST /api/finance/financials
func (h *Handler) HandleUploadFinancials(w http.ResponseWriter, r *http.Request) {
	var payload []financialsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(payload) == 0 {
		http.Error(w, "No financials provided", http.StatusBadRequest)
		return
	}

	financials := make([]finance.Financials, 0, len(payload))
	for _, fp := range payload {
		if fp.Market == "" || fp.Brand == "" {
			http.Error(w, "Financials require market and brand", http.StatusBadRequest)
			return
		}
		if fp.GrossMarginPct < 0 || fp.GrossMarginPct > 1 {
			http.Error(w, "Gross margin must be a fraction between 0 and 1", http.StatusBadRequest)
			return
		}
		financials = append(financials, finance.Financials{
			BrandKey: finance.BrandKey{
				Region: fp.Region,
				Market: fp.Market,
				Brand:  fp.Brand,
			},
			PricePerUnit:   fp.PricePerUnit,
			GrossMarginPct: fp.GrossMarginPct,
		})
	}

	if err := h.repo.UpsertFinancials(financials); err != nil {
		h.log.Error().Err(err).Msg("Failed to save financials")
		http.Error(w, "Failed to save financials", http.StatusInternalServerError)
		return
	}
	h.writeCount(w, len(financials))
}

// HandleUploadBudgets handles POST /api/finance/budgets
func (h *Handler) HandleUploadBudgets(w http.ResponseWriter, r *http.Request) {
	var payload []budgetPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(payload) == 0 {
		http.Error(w, "No budgets provided", http.StatusBadRequest)
		return
	}

	budgets := make([]finance.Budget, 0, len(payload))
	for _, bp := range payload {
		if bp.Market == "" || bp.Brand == "" {
			http.Error(w, "Budgets require market and brand", http.StatusBadRequest)
			return
		}
		budgets = append(budgets, finance.Budget{
			BudgetKey: finance.BudgetKey{
				Market: bp.Market,
				Brand:  bp.Brand,
			},
			TargetSpend: bp.TargetSpend,
			TargetSales: bp.TargetSales,
			TargetOpex:  bp.TargetOpex,
		})
	}

	if err := h.repo.UpsertBudgets(budgets); err != nil {
		h.log.Error().Err(err).Msg("Failed to save budgets")
		http.Error(w, "Failed to save budgets", http.StatusInternalServerError)
		return
	}
	h.writeCount(w, len(budgets))
}

// HandleUploadBaselineSales handles POST /api/finance/baseline-sales
func (h *Handler) HandleUploadBaselineSales(w http.ResponseWriter, r *http.Request) {
	var payload []baselineSalesPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(payload) == 0 {
		http.Error(w, "No baseline sales provided", http.StatusBadRequest)
		return
	}

	sales := make(map[finance.BrandKey]float64, len(payload))
	for _, sp := range payload {
		if sp.Market == "" || sp.Brand == "" {
			http.Error(w, "Baseline sales require market and brand", http.StatusBadRequest)
			return
		}
		sales[finance.BrandKey{
			Region: sp.Region,
			Market: sp.Market,
			Brand:  sp.Brand,
		}] = sp.SalesValue
	}

	if err := h.repo.UpsertBaselineSales(sales); err != nil {
		h.log.Error().Err(err).Msg("Failed to save baseline sales")
		http.Error(w, "Failed to save baseline sales", http.StatusInternalServerError)
		return
	}
	h.writeCount(w, len(sales))
}

// HandleGetFinancials handles GET /api/finance/financials
func (h *Handler) HandleGetFinancials(w http.ResponseWriter, r *http.Request) {
	financials, err := h.repo.GetFinancials()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load financials")
		http.Error(w, "Failed to load financials", http.StatusInternalServerError)
		return
	}

	out := make([]financialsPayload, 0, len(financials))
	for key, f := range financials {
		out = append(out, financialsPayload{
			Region:         key.Region,
			Market:         key.Market,
			Brand:          key.Brand,
			PricePerUnit:   f.PricePerUnit,
			GrossMarginPct: f.GrossMarginPct,
		})
	}

	response := map[string]interface{}{
		"data": out,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"count":     len(out),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

func (h *Handler) writeCount(w http.ResponseWriter, count int) {
	response := map[string]interface{}{
		"data": map[string]interface{}{
			"rows": count,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusCreated, response)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
