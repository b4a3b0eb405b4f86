// Package handlers provides HTTP handlers for response-curve data.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/reachplan/optimizer/internal/modules/curves"
	"github.com/rs/zerolog"
)

// Handler handles response-curve HTTP requests.
type Handler struct {
	repo *curves.Repository
	log  zerolog.Logger
}

// NewHandler creates a new curves handler.
func NewHandler(repo *curves.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "curves").Logger(),
	}
}

type pointPayload struct {
	Region       string  `json:"region"`
	Market       string  `json:"market"`
	Brand        string  `json:"brand"`
	Channel      string  `json:"channel"`
	Specialty    string  `json:"specialty"`
	Segment      string  `json:"segment"`
	UpliftIdx    int     `json:"upliftidx"`
	Spend        float64 `json:"spend"`
	SelloutValue float64 `json:"sellout_value"`
	SelloutUnits float64 `json:"sellout_units"`
	MarginValue  float64 `json:"margin_value"`
	PeriodStart  string  `json:"period_start,omitempty"` // RFC 3339
	PeriodEnd    string  `json:"period_end,omitempty"`
}

type uploadPayload struct {
	HasUnits bool           `json:"has_units"`
	Points   []pointPayload `json:"points"`
}

// HandleUploadCurves handles POST /api/curves
// Replaces the stored curves for the markets present in the payload.
func (h *Handler) HandleUploadCurves(w http.ResponseWriter, r *http.Request) {
	var payload uploadPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(payload.Points) == 0 {
		http.Error(w, "No curve points provided", http.StatusBadRequest)
		return
	}

	points := make([]curves.Point, 0, len(payload.Points))
	for i, pp := range payload.Points {
		if pp.Market == "" || pp.Brand == "" {
			h.log.Warn().Int("row", i).Msg("Curve point missing market or brand")
			http.Error(w, "Curve points require market and brand", http.StatusBadRequest)
			return
		}
		if pp.UpliftIdx < 0 {
			http.Error(w, "Uplift index must be non-negative", http.StatusBadRequest)
			return
		}

		p := curves.Point{
			Region:       pp.Region,
			Market:       pp.Market,
			Brand:        pp.Brand,
			Channel:      pp.Channel,
			Specialty:    pp.Specialty,
			Segment:      pp.Segment,
			UpliftIdx:    pp.UpliftIdx,
			Spend:        pp.Spend,
			SelloutValue: pp.SelloutValue,
			SelloutUnits: pp.SelloutUnits,
			MarginValue:  pp.MarginValue,
			IsReference:  pp.UpliftIdx == curves.ReferenceUplift,
		}
		if pp.PeriodStart != "" {
			start, err := time.Parse(time.RFC3339, pp.PeriodStart)
			if err != nil {
				http.Error(w, "Invalid period_start", http.StatusBadRequest)
				return
			}
			p.PeriodStart = start
		}
		if pp.PeriodEnd != "" {
			end, err := time.Parse(time.RFC3339, pp.PeriodEnd)
			if err != nil {
				http.Error(w, "Invalid period_end", http.StatusBadRequest)
				return
			}
			p.PeriodEnd = end
		}
		points = append(points, p)
	}

	table := curves.NewTable(points, payload.HasUnits)
	if err := h.repo.Save(table); err != nil {
		h.log.Error().Err(err).Msg("Failed to save response curves")
		http.Error(w, "Failed to save response curves", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"points": len(points),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusCreated, response)
}

// HandleGetCurves handles GET /api/curves?market={market}
func (h *Handler) HandleGetCurves(w http.ResponseWriter, r *http.Request) {
	market := r.URL.Query().Get("market")

	table, err := h.repo.Load(market)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load response curves")
		http.Error(w, "Failed to load response curves", http.StatusInternalServerError)
		return
	}

	points := make([]pointPayload, 0, len(table.Points))
	for _, p := range table.Points {
		pp := pointPayload{
			Region:       p.Region,
			Market:       p.Market,
			Brand:        p.Brand,
			Channel:      p.Channel,
			Specialty:    p.Specialty,
			Segment:      p.Segment,
			UpliftIdx:    p.UpliftIdx,
			Spend:        p.Spend,
			SelloutValue: p.SelloutValue,
			SelloutUnits: p.SelloutUnits,
			MarginValue:  p.MarginValue,
		}
		if !p.PeriodStart.IsZero() {
			pp.PeriodStart = p.PeriodStart.Format(time.RFC3339)
		}
		if !p.PeriodEnd.IsZero() {
			pp.PeriodEnd = p.PeriodEnd.Format(time.RFC3339)
		}
		points = append(points, pp)
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"has_units": table.HasUnits,
			"points":    points,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"count":     len(points),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
