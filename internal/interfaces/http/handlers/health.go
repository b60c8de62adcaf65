package handlers

import (
	"net/http"
	"time"

	httpContracts "github.com/beargallbladder/fleetapitest-sub000/internal/http"
)

// Health handles GET /health. Scoring runs entirely in memory, so a down
// ledger degrades the report without failing the probe.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	ledger := httpContracts.LedgerStatus{}
	if h.health != nil {
		check := h.health.Health(r.Context())
		ledger = httpContracts.LedgerStatus{
			Enabled:        true,
			Healthy:        check.Healthy,
			ResponseTimeMS: check.ResponseTimeMS,
			Errors:         check.Errors,
			ConnectionPool: check.ConnectionPool,
		}
		if !check.Healthy {
			status = "degraded"
		}
	}

	clients := 0
	if h.hub != nil {
		clients = h.hub.ClientCount()
	}

	response := httpContracts.HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.start).Round(time.Second).String(),
		Version:   h.version,
		Engine: httpContracts.EngineStatus{
			Name:        h.service.BackendName(),
			Accelerated: h.service.Accelerated(),
		},
		Ledger:   ledger,
		LiveFeed: httpContracts.LiveStatus{Clients: clients},
	}

	h.writeJSON(w, http.StatusOK, response)
}
