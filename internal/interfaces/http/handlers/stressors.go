package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/beargallbladder/fleetapitest-sub000/internal/domain/stressor"
)

// Stressors handles POST /stressors, running the exposure-based
// multiplicative assessment for one vehicle.
func (h *Handlers) Stressors(w http.ResponseWriter, r *http.Request) {
	var in stressor.ExposureInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_json",
			"Request body must be a JSON exposure input: "+err.Error())
		return
	}

	in.VIN = strings.TrimSpace(in.VIN)
	if in.VIN == "" {
		h.writeError(w, r, http.StatusBadRequest, "missing_vin", "vin is required")
		return
	}
	if !finite(in.DaysOver95F, in.DaysBelow20F, in.ShortTripShare, in.ElevationFt, in.SaltExposureDays) ||
		in.DaysOver95F < 0 || in.DaysBelow20F < 0 || in.ElevationFt < 0 || in.SaltExposureDays < 0 {
		h.writeError(w, r, http.StatusBadRequest, "invalid_exposure",
			"exposure values must be finite and >= 0")
		return
	}
	if in.ShortTripShare < 0 || in.ShortTripShare > 1 {
		h.writeError(w, r, http.StatusBadRequest, "invalid_exposure",
			"short_trip_share must be between 0 and 1")
		return
	}

	started := time.Now()
	result, err := h.service.AssessStressors(r.Context(), in)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "assessment_failed", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, h.envelope(result, time.Since(started)))
}
