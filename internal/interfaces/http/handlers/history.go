package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/beargallbladder/fleetapitest-sub000/internal/application"
	"github.com/beargallbladder/fleetapitest-sub000/internal/domain/risk"
)

// limitParam parses a bounded limit query parameter.
func limitParam(r *http.Request, def, max int) int {
	limit := def
	if s := r.URL.Query().Get("limit"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 && parsed <= max {
			limit = parsed
		}
	}
	return limit
}

// History handles GET /vehicles/{vin}/history, newest first.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	vin := strings.TrimSpace(pathVar(r, "vin"))
	if vin == "" {
		h.writeError(w, r, http.StatusBadRequest, "missing_vin", "vin path parameter is required")
		return
	}
	limit := limitParam(r, 50, 500)

	started := time.Now()
	records, err := h.service.VehicleHistory(r.Context(), vin, limit)
	if err != nil {
		if errors.Is(err, application.ErrLedgerDisabled) {
			h.writeError(w, r, http.StatusServiceUnavailable, "ledger_disabled",
				"Score history requires a configured ledger")
			return
		}
		h.writeError(w, r, http.StatusInternalServerError, "history_failed", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, h.envelope(records, time.Since(started)))
}

// Recent handles GET /recent, the most recently scored vehicles.
func (h *Handlers) Recent(w http.ResponseWriter, r *http.Request) {
	limit := limitParam(r, 20, 200)

	started := time.Now()
	records, err := h.service.RecentScores(r.Context(), limit)
	if err != nil {
		if errors.Is(err, application.ErrLedgerDisabled) {
			h.writeError(w, r, http.StatusServiceUnavailable, "ledger_disabled",
				"Recent scores require a configured ledger")
			return
		}
		h.writeError(w, r, http.StatusInternalServerError, "recent_failed", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, h.envelope(records, time.Since(started)))
}

// GetWeather handles GET /weather, returning the ambient conditions every
// score is computed under unless overridden per request.
func (h *Handlers) GetWeather(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	h.writeJSON(w, http.StatusOK, h.envelope(h.service.Weather(), time.Since(started)))
}

// PutWeather handles PUT /weather, replacing the ambient conditions.
func (h *Handlers) PutWeather(w http.ResponseWriter, r *http.Request) {
	var conditions risk.WeatherConditions
	if err := json.NewDecoder(r.Body).Decode(&conditions); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_json",
			"Request body must be a JSON weather object: "+err.Error())
		return
	}

	started := time.Now()
	if err := h.service.SetWeather(conditions); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_weather", err.Error())
		return
	}

	h.broadcast("weather", conditions)
	h.writeJSON(w, http.StatusOK, h.envelope(h.service.Weather(), time.Since(started)))
}
