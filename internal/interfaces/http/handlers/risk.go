package handlers

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/beargallbladder/fleetapitest-sub000/internal/application"
	"github.com/beargallbladder/fleetapitest-sub000/internal/cache"
	"github.com/beargallbladder/fleetapitest-sub000/internal/domain/risk"
	httpContracts "github.com/beargallbladder/fleetapitest-sub000/internal/http"
)

// minModelYear is the oldest model year accepted when the caller supplies
// a year instead of an explicit vehicle age.
const minModelYear = 1950

// requestError pairs a machine-readable code with a human message for
// 400 responses.
type requestError struct {
	code    string
	message string
}

// Risk handles POST /risk, scoring a single vehicle.
func (h *Handlers) Risk(w http.ResponseWriter, r *http.Request) {
	var req httpContracts.RiskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_json",
			"Request body must be a JSON risk request: "+err.Error())
		return
	}

	in, reqErr := h.toRiskInput(req, time.Now())
	if reqErr != nil {
		h.writeError(w, r, http.StatusBadRequest, reqErr.code, reqErr.message)
		return
	}

	weather := h.service.Weather()
	if req.Weather != nil {
		if !finite(req.Weather.TemperatureF, req.Weather.HumidityPct, req.Weather.Precipitation, req.Weather.TempSwingF) {
			h.writeError(w, r, http.StatusBadRequest, "invalid_weather",
				"weather fields must be finite numbers")
			return
		}
		weather = *req.Weather
	}

	key := cache.Key("score", fingerprint(in, weather))
	if h.cachedResponse(w, key, "score") {
		return
	}

	started := time.Now()
	report, err := h.service.ScoreVehicleWith(r.Context(), in, weather)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "scoring_failed", err.Error())
		return
	}

	h.broadcast("score", report)
	h.storeResponse(w, key, h.envelope(report, time.Since(started)))
}

// Fleet handles POST /fleet, scoring a batch of vehicles. The body is a
// bare JSON array of risk requests; per-vehicle weather overrides are not
// supported and the batch scores under the ambient conditions.
func (h *Handlers) Fleet(w http.ResponseWriter, r *http.Request) {
	var reqs []httpContracts.RiskRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_json",
			"Request body must be a JSON array of risk requests: "+err.Error())
		return
	}
	if len(reqs) > maxFleetBatch {
		h.writeError(w, r, http.StatusRequestEntityTooLarge, "fleet_too_large",
			fmt.Sprintf("Fleet batch of %d exceeds the %d vehicle limit", len(reqs), maxFleetBatch))
		return
	}

	now := time.Now()
	ins := make([]risk.VehicleRiskInput, 0, len(reqs))
	for i, req := range reqs {
		in, reqErr := h.toRiskInput(req, now)
		if reqErr != nil {
			h.writeError(w, r, http.StatusBadRequest, reqErr.code,
				fmt.Sprintf("vehicle %d: %s", i, reqErr.message))
			return
		}
		ins = append(ins, in)
	}

	started := time.Now()
	reports, err := h.service.ScoreFleet(r.Context(), ins)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "scoring_failed", err.Error())
		return
	}

	results := make(map[string]application.VehicleReport, len(reports))
	top := 0
	for _, rep := range reports {
		results[rep.VIN] = rep
		if rep.PriorityScore > top {
			top = rep.PriorityScore
		}
	}

	h.broadcast("fleet", httpContracts.FleetEventData{Count: len(reports), TopScore: top})
	h.writeJSON(w, http.StatusOK,
		h.envelope(httpContracts.FleetResponse{Count: len(reports), Results: results}, time.Since(started)))
}

// toRiskInput validates a request and resolves it into engine input.
// Vehicle age comes from vehicle_age_years when present, otherwise from
// the model year; environment comes from the explicit block when present,
// otherwise from the zip lookup.
func (h *Handlers) toRiskInput(req httpContracts.RiskRequest, now time.Time) (risk.VehicleRiskInput, *requestError) {
	vin := strings.TrimSpace(req.VIN)
	if vin == "" {
		return risk.VehicleRiskInput{}, &requestError{"missing_vin", "vin is required"}
	}

	var age float64
	switch {
	case req.VehicleAgeYears != nil:
		age = *req.VehicleAgeYears
		if !finite(age) || age < 0 {
			return risk.VehicleRiskInput{}, &requestError{"invalid_age",
				"vehicle_age_years must be a finite value >= 0"}
		}
	case req.Year != nil:
		year := *req.Year
		if year < minModelYear || year > now.Year()+1 {
			return risk.VehicleRiskInput{}, &requestError{"invalid_year",
				fmt.Sprintf("year must be between %d and %d", minModelYear, now.Year()+1)}
		}
		age = float64(now.Year() - year)
		if age < 0 {
			age = 0
		}
	default:
		return risk.VehicleRiskInput{}, &requestError{"missing_age",
			"either vehicle_age_years or year is required"}
	}

	if !finite(req.Mileage) || req.Mileage < 0 {
		return risk.VehicleRiskInput{}, &requestError{"invalid_mileage", "mileage must be >= 0"}
	}
	if !finite(req.HealthScore) || req.HealthScore < 0 || req.HealthScore > 100 {
		return risk.VehicleRiskInput{}, &requestError{"invalid_health_score",
			"health_score must be between 0 and 100"}
	}
	if !finite(req.DTCs.Powertrain, req.DTCs.Body, req.DTCs.Chassis, req.DTCs.Network) ||
		req.DTCs.Powertrain < 0 || req.DTCs.Body < 0 || req.DTCs.Chassis < 0 || req.DTCs.Network < 0 {
		return risk.VehicleRiskInput{}, &requestError{"invalid_dtcs", "dtc counts must be >= 0"}
	}
	if req.OpenRecalls < 0 {
		return risk.VehicleRiskInput{}, &requestError{"invalid_recalls", "open_recalls must be >= 0"}
	}

	var env risk.EnvironmentExposure
	switch {
	case req.Environment != nil:
		env = *req.Environment
		for _, v := range []float64{env.RustBeltSeverity, env.StopGoTraffic, env.TerrainDifficulty, env.ThermalStress} {
			if !finite(v) || v < 0 || v > 100 {
				return risk.VehicleRiskInput{}, &requestError{"invalid_environment",
					"environment severities must be between 0 and 100"}
			}
		}
	case req.Zip != "":
		resolved, err := h.service.EnvironmentForZip(req.Zip)
		if err != nil {
			return risk.VehicleRiskInput{}, &requestError{"unknown_zip", err.Error()}
		}
		env = resolved
	}

	return risk.VehicleRiskInput{
		VIN:             vin,
		Mileage:         req.Mileage,
		VehicleAgeYears: age,
		HealthScore:     req.HealthScore,
		DTCs:            req.DTCs,
		Environment:     env,
		OpenRecalls:     req.OpenRecalls,
	}, nil
}

// fingerprint derives a stable cache key component from the effective
// scoring input, including the weather the score runs under.
func fingerprint(in risk.VehicleRiskInput, w risk.WeatherConditions) string {
	payload := struct {
		In risk.VehicleRiskInput  `json:"in"`
		W  risk.WeatherConditions `json:"w"`
	}{in, w}
	b, _ := json.Marshal(payload)
	sum := fnv.New64a()
	_, _ = sum.Write(b)
	return strconv.FormatUint(sum.Sum64(), 16)
}

// finite reports whether every value is a usable number.
func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
