// Package stressor implements the environmental stressor probability model.
// It is deliberately independent of the Bayesian risk engine: stressors
// answer "how likely is an imminent service visit given chronic exposure",
// not "how abnormal is this vehicle". The two numbers are reported side by
// side and never merged.
package stressor

import (
	"math"

	"github.com/shopspring/decimal"
)

// BaseRate is the unconditional probability that a vehicle needs service in
// the assessment window before any stressor evidence is applied. It is a
// different quantity from the risk engine's failure base rate and the two
// must not be conflated.
const BaseRate = 0.12

// MaxProbability caps the adjusted probability. Multiplying likelihood
// ratios as if stressors were independent overstates joint exposure, so the
// model refuses to report near-certainty.
const MaxProbability = 0.95

// ActiveThreshold is the minimum intensity at which a stressor counts as
// active for attribution and parts recommendations. Sub-threshold exposure
// still nudges the probability.
const ActiveThreshold = 0.25

// Config describes one environmental stressor: its identifier, display
// name, the likelihood ratio applied at full intensity, a provenance note
// for the ratio, and the parts a service advisor should inspect when the
// stressor is active.
type Config struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	LikelihoodRatio float64  `json:"likelihood_ratio"`
	Source          string   `json:"source"`
	Parts           []string `json:"parts"`
}

// Catalog lists the modeled stressors in fixed order, strongest ratio
// first. Order matters: attribution ties break toward the earlier entry and
// parts recommendations preserve catalog order.
var Catalog = []Config{
	{
		ID:              "road_salt",
		Name:            "Road Salt Corrosion",
		LikelihoodRatio: 2.1,
		Source:          "NHTSA corrosion-related brake line failure studies",
		Parts: []string{
			"brake lines", "undercoating treatment", "brake calipers", "exhaust system",
		},
	},
	{
		ID:              "extreme_heat",
		Name:            "Extreme Heat",
		LikelihoodRatio: 1.8,
		Source:          "battery council hot-climate failure rates",
		Parts: []string{
			"battery", "coolant hoses", "a/c compressor", "serpentine belt",
		},
	},
	{
		ID:              "cold_start",
		Name:            "Hard Cold Starts",
		LikelihoodRatio: 1.6,
		Source:          "cold-cranking wear studies, SAE J series",
		Parts: []string{
			"battery", "starter motor", "engine oil and filter",
		},
	},
	{
		ID:              "short_trip",
		Name:            "Short Trip Cycling",
		LikelihoodRatio: 1.4,
		Source:          "oil dilution and condensation service bulletins",
		Parts: []string{
			"engine oil and filter", "spark plugs", "exhaust system", "pcv valve",
		},
	},
	{
		ID:              "high_altitude",
		Name:            "High Altitude Operation",
		LikelihoodRatio: 1.3,
		Source:          "manufacturer altitude derating guidance",
		Parts: []string{
			"air filter", "fuel injectors", "transmission fluid",
		},
	},
}

// ExposureInput carries the raw exposure measurements for one vehicle.
// Fields map onto catalog stressors; zero values mean no exposure.
type ExposureInput struct {
	VIN              string  `json:"vin"`
	DaysOver95F      float64 `json:"days_over_95f"`
	DaysBelow20F     float64 `json:"days_below_20f"`
	ShortTripShare   float64 `json:"short_trip_share"`
	ElevationFt      float64 `json:"elevation_ft"`
	SaltExposureDays float64 `json:"salt_exposure_days"`
}

// Saturation points: exposure at or beyond these values drives intensity to
// its 1.0 ceiling.
const (
	heatSaturationDays   = 30.0
	coldSaturationDays   = 30.0
	shortTripSaturation  = 0.6
	altitudeSaturationFt = 8000.0
	saltSaturationDays   = 120.0
)

// Intensity is a stressor's activation level for one vehicle, in [0,1],
// with its contribution to the adjusted probability.
type Intensity struct {
	StressorID   string  `json:"stressor_id"`
	Name         string  `json:"name"`
	Intensity    float64 `json:"intensity"`
	Active       bool    `json:"active"`
	Contribution float64 `json:"contribution"`
}

// Tier grades an adjusted probability into a service priority band. Ranges
// are half-open [Min, Max); the first matching tier wins.
type Tier struct {
	Name           string          `json:"name"`
	Min            float64         `json:"min"`
	Max            float64         `json:"max"`
	ServiceRevenue decimal.Decimal `json:"service_revenue"`
}

// Tiers is ordered highest first. A probability at or above every Max falls
// through to the final LOW entry; the cap at MaxProbability keeps that path
// unreachable in practice but the fallback is still defined.
var Tiers = []Tier{
	{Name: "CRITICAL", Min: 0.60, Max: 1.00, ServiceRevenue: decimal.NewFromInt(1850)},
	{Name: "HIGH", Min: 0.40, Max: 0.60, ServiceRevenue: decimal.NewFromInt(1200)},
	{Name: "MODERATE", Min: 0.20, Max: 0.40, ServiceRevenue: decimal.NewFromInt(650)},
	{Name: "LOW", Min: 0.00, Max: 0.20, ServiceRevenue: decimal.NewFromInt(280)},
}

// TierFor returns the tier whose [Min, Max) range contains p. Probabilities
// outside every range default to the LOW tier.
func TierFor(p float64) Tier {
	for _, t := range Tiers {
		if p >= t.Min && p < t.Max {
			return t
		}
	}
	return Tiers[len(Tiers)-1]
}

// Result is the full stressor assessment for one vehicle.
type Result struct {
	VIN              string      `json:"vin"`
	BaseRate         float64     `json:"base_rate"`
	Probability      float64     `json:"probability"`
	Capped           bool        `json:"capped"`
	Stressors        []Intensity `json:"stressors"`
	PrimaryStressor  string      `json:"primary_stressor"`
	Tier             Tier        `json:"tier"`
	RecommendedParts []string    `json:"recommended_parts"`
}

// maxRecommendedParts bounds the parts list so a heavily stressed vehicle
// still yields an actionable short list.
const maxRecommendedParts = 6

// clamp01 bounds an intensity to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// intensityFor maps raw exposure onto a stressor's activation level.
func intensityFor(id string, in ExposureInput) float64 {
	switch id {
	case "road_salt":
		return clamp01(in.SaltExposureDays / saltSaturationDays)
	case "extreme_heat":
		return clamp01(in.DaysOver95F / heatSaturationDays)
	case "cold_start":
		return clamp01(in.DaysBelow20F / coldSaturationDays)
	case "short_trip":
		return clamp01(in.ShortTripShare / shortTripSaturation)
	case "high_altitude":
		return clamp01(in.ElevationFt / altitudeSaturationFt)
	default:
		return 0
	}
}

// Assess runs the stressor probability model over one vehicle's exposure.
// The adjusted probability is BaseRate multiplied by each stressor's
// intensity-scaled likelihood ratio, capped at MaxProbability. Every
// stressor participates in the product; only active ones drive attribution
// and the parts list.
func Assess(in ExposureInput) Result {
	res := Result{
		VIN:       in.VIN,
		BaseRate:  BaseRate,
		Stressors: make([]Intensity, 0, len(Catalog)),
	}

	p := BaseRate
	bestContribution := 0.0
	for _, cfg := range Catalog {
		intensity := intensityFor(cfg.ID, in)
		contribution := (cfg.LikelihoodRatio - 1) * intensity
		p *= 1 + contribution

		active := intensity >= ActiveThreshold
		res.Stressors = append(res.Stressors, Intensity{
			StressorID:   cfg.ID,
			Name:         cfg.Name,
			Intensity:    intensity,
			Active:       active,
			Contribution: contribution,
		})
		if active && contribution > bestContribution {
			bestContribution = contribution
			res.PrimaryStressor = cfg.ID
		}
	}

	if p > MaxProbability {
		p = MaxProbability
		res.Capped = true
	}
	if math.IsNaN(p) {
		p = BaseRate
	}
	res.Probability = p
	res.Tier = TierFor(p)
	res.RecommendedParts = recommendParts(res.Stressors)
	return res
}

// recommendParts collects parts from active stressors in catalog order,
// deduplicated, capped at maxRecommendedParts.
func recommendParts(intensities []Intensity) []string {
	seen := make(map[string]bool)
	parts := make([]string, 0, maxRecommendedParts)
	for i, cfg := range Catalog {
		if i >= len(intensities) || !intensities[i].Active {
			continue
		}
		for _, part := range cfg.Parts {
			if seen[part] {
				continue
			}
			seen[part] = true
			parts = append(parts, part)
			if len(parts) == maxRecommendedParts {
				return parts
			}
		}
	}
	return parts
}
