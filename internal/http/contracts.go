// Package http defines the wire contracts of the scoring API. Handlers and
// clients share these types; they carry no behavior.
package http

import (
	"time"

	"github.com/beargallbladder/fleetapitest-sub000/internal/application"
	"github.com/beargallbladder/fleetapitest-sub000/internal/domain/risk"
)

// Envelope wraps every successful API response.
type Envelope struct {
	Success  bool        `json:"success"`
	Engine   string      `json:"engine"`
	Result   interface{} `json:"result"`
	TimingMS float64     `json:"timing_ms"`
}

// ErrorResponse represents API error responses.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// RiskRequest is the body of POST /risk and each element of POST /fleet.
// Vehicle age can be given directly in years or derived from a model year.
// The environmental block may be omitted when a ZIP code is supplied; the
// regional severity profile then fills it. An optional weather block scores
// this request under explicit conditions without touching the ambient
// state.
type RiskRequest struct {
	VIN             string                    `json:"vin"`
	Mileage         float64                   `json:"mileage"`
	VehicleAgeYears *float64                  `json:"vehicle_age_years,omitempty"`
	Year            *int                      `json:"year,omitempty"`
	HealthScore     float64                   `json:"health_score"`
	DTCs            risk.DTCCounts            `json:"dtcs"`
	Environment     *risk.EnvironmentExposure `json:"environment,omitempty"`
	Zip             string                    `json:"zip,omitempty"`
	OpenRecalls     int                       `json:"open_recalls"`
	Weather         *risk.WeatherConditions   `json:"weather,omitempty"`
}

// FleetResponse is the result payload of POST /fleet. Results are keyed by
// VIN; a batch with duplicate VINs keeps the last occurrence.
type FleetResponse struct {
	Count   int                                  `json:"count"`
	Results map[string]application.VehicleReport `json:"results"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string       `json:"status"` // healthy, degraded
	Timestamp time.Time    `json:"timestamp"`
	Uptime    string       `json:"uptime"`
	Version   string       `json:"version"`
	Engine    EngineStatus `json:"engine"`
	Ledger    LedgerStatus `json:"ledger"`
	LiveFeed  LiveStatus   `json:"live_feed"`
}

// EngineStatus reports which scoring backend is serving.
type EngineStatus struct {
	Name        string `json:"name"`
	Accelerated bool   `json:"accelerated"`
}

// LedgerStatus reports persistence health.
type LedgerStatus struct {
	Enabled        bool           `json:"enabled"`
	Healthy        bool           `json:"healthy"`
	ResponseTimeMS int64          `json:"response_time_ms"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool,omitempty"`
}

// LiveStatus reports websocket feed state.
type LiveStatus struct {
	Clients int `json:"clients"`
}

// LiveEvent is one message on the GET /live websocket feed.
type LiveEvent struct {
	Type      string      `json:"type"` // hello, score, fleet, weather
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// FleetEventData summarizes a batch scoring for the live feed. Individual
// reports are not rebroadcast; subscribers poll the ledger for detail.
type FleetEventData struct {
	Count    int `json:"count"`
	TopScore int `json:"top_score"`
}
