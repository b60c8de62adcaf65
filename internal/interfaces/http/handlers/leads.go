package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/beargallbladder/fleetapitest-sub000/internal/cache"
	"github.com/beargallbladder/fleetapitest-sub000/internal/geo"
)

// Leads handles GET /leads, ranking service regions by environmental
// severity. Query parameters: zips (comma-separated) or demo=1 for the
// built-in demo set. Unknown zips are dropped from the ranking.
func (h *Handlers) Leads(w http.ResponseWriter, r *http.Request) {
	var zips []string
	for _, z := range strings.Split(r.URL.Query().Get("zips"), ",") {
		z = strings.TrimSpace(z)
		if z != "" {
			zips = append(zips, z)
		}
	}
	if len(zips) == 0 {
		if demo := r.URL.Query().Get("demo"); demo == "1" || demo == "true" {
			zips = geo.DemoZips()
		} else {
			h.writeError(w, r, http.StatusBadRequest, "missing_zips",
				"zips query parameter is required (or pass demo=1)")
			return
		}
	}

	key := cache.Key("lead", strings.Join(zips, ","))
	if h.cachedResponse(w, key, "lead") {
		return
	}

	started := time.Now()
	leads, err := h.service.ScoreLeads(r.Context(), zips)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "lead_scoring_failed", err.Error())
		return
	}

	h.storeResponse(w, key, h.envelope(leads, time.Since(started)))
}

// Lead handles GET /leads/{zip}, scoring a single region.
func (h *Handlers) Lead(w http.ResponseWriter, r *http.Request) {
	zip := strings.TrimSpace(pathVar(r, "zip"))
	if zip == "" {
		h.writeError(w, r, http.StatusBadRequest, "missing_zip", "zip path parameter is required")
		return
	}

	started := time.Now()
	lead, err := h.service.LeadForZip(zip)
	if err != nil {
		h.writeError(w, r, http.StatusNotFound, "unknown_zip", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, h.envelope(lead, time.Since(started)))
}
