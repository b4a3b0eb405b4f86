// Package handlers provides HTTP handlers for recommendation runs.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/reachplan/optimizer/internal/modules/recommendation"
	"github.com/reachplan/optimizer/internal/modules/results"
	"github.com/rs/zerolog"
)

// Handler handles recommendation run HTTP requests.
type Handler struct {
	service *recommendation.Service
	results *results.Repository
	log     zerolog.Logger
}

// NewHandler creates a new recommendation handler.
func NewHandler(
	service *recommendation.Service,
	resultsRepo *results.Repository,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service: service,
		results: resultsRepo,
		log:     log.With().Str("handler", "recommendation").Logger(),
	}
}

// HandleTriggerRun handles POST /api/runs
// Starts a recommendation run in the background and returns its ID.
func (h *Handler) HandleTriggerRun(w http.ResponseWriter, r *http.Request) {
	var settings recommendation.RunSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode run settings")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	runID, err := h.service.StartRun(r.Context(), settings)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to start run")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"run_id": runID,
			"state":  string(recommendation.StateBuildDomain),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusAccepted, response)
}

// HandleGetRun handles GET /api/runs/{runID}
// Returns run state and metadata without the scenario payload.
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := runIDParam(r)

	rec, err := h.results.GetRun(runID)
	if err != nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"data": rec,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetScenario handles GET /api/runs/{runID}/scenario
// Returns the arranged scenario document of a finished run.
func (h *Handler) HandleGetScenario(w http.ResponseWriter, r *http.Request) {
	runID := runIDParam(r)

	scenario, err := h.results.GetScenario(runID)
	if err != nil {
		h.log.Debug().Err(err).Str("run_id", runID).Msg("Scenario not available")
		http.Error(w, "Scenario not available", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"data": scenario,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleListRuns handles GET /api/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	runs, err := h.results.ListRuns(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"runs":  runs,
			"count": len(runs),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleRunSync handles POST /api/runs/sync
// Runs a recommendation synchronously and returns the scenario. Intended for
// small scopes and tooling; large runs should use the async endpoint.
func (h *Handler) HandleRunSync(w http.ResponseWriter, r *http.Request) {
	var settings recommendation.RunSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.Run(r.Context(), settings)
	if err != nil {
		if errors.Is(err, recommendation.ErrInfeasible) {
			http.Error(w, "Constraints are infeasible", http.StatusUnprocessableEntity)
			return
		}
		h.log.Error().Err(err).Msg("Synchronous run failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": result,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
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
