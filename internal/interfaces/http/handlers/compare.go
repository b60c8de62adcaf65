package handlers

import (
	"net/http"
	"strconv"
	"time"
)

// Compare handles GET /compare, placing a priority score against the
// synthetic fleet distribution. Query parameters: score (required, 0-100)
// and fleet (optional synthetic fleet size).
func (h *Handlers) Compare(w http.ResponseWriter, r *http.Request) {
	scoreStr := r.URL.Query().Get("score")
	if scoreStr == "" {
		h.writeError(w, r, http.StatusBadRequest, "missing_score",
			"score query parameter is required")
		return
	}
	score, err := strconv.Atoi(scoreStr)
	if err != nil || score < 0 || score > 100 {
		h.writeError(w, r, http.StatusBadRequest, "invalid_score",
			"score must be an integer between 0 and 100")
		return
	}

	fleetSize := 0
	if fleetStr := r.URL.Query().Get("fleet"); fleetStr != "" {
		parsed, err := strconv.Atoi(fleetStr)
		if err != nil || parsed <= 0 {
			h.writeError(w, r, http.StatusBadRequest, "invalid_fleet",
				"fleet must be a positive integer")
			return
		}
		fleetSize = parsed
	}

	started := time.Now()
	comparison := h.service.CompareToFleet(score, fleetSize)
	h.writeJSON(w, http.StatusOK, h.envelope(comparison, time.Since(started)))
}
