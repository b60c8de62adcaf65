// Package risk implements the Bayesian inference engine that turns noisy
// vehicle telemetry into a bounded 0-100 service priority score. Evidence
// enters as likelihood ratios, is combined in log space with dampening
// weights to soften the independence assumption, and updates a demographic
// prior in odds form.
package risk

import (
	"math"

	"github.com/beargallbladder/fleetapitest-sub000/internal/domain/cohort"
	"github.com/beargallbladder/fleetapitest-sub000/internal/domain/outlier"
)

// Model constants. These are calibration, not configuration: changing them
// changes what a score means, so they are fixed in code and shared by every
// backend.
const (
	// BaseFailureRate is the unconditional probability of component failure
	// in the scoring window for a new, healthy vehicle.
	BaseFailureRate = 0.023

	// MaxPrior caps the demographic prior so no vehicle is condemned on age
	// and health alone before evidence is seen.
	MaxPrior = 0.9

	// MaxAgeFactor bounds the age multiplier; beyond ten years the fleet
	// data stops distinguishing.
	MaxAgeFactor = 2.0

	// ExpectedMilesPerYear is the fleet-average annual mileage used to
	// judge odometer wear against age.
	ExpectedMilesPerYear = 12000.0

	// MaxZScore clamps standardized DTC counts before they enter the
	// likelihood curve. Outlier reporting uses the raw value instead.
	MaxZScore = 3.0

	// MaxRecalls caps how many open recalls contribute to the recall
	// likelihood.
	MaxRecalls = 5

	// MaxRecallLikelihood bounds the recall factor.
	MaxRecallLikelihood = 1.5
)

// Dampening weights applied to each factor's log-likelihood before
// combination. Weights below 1 shrink each factor toward neutrality,
// compensating for correlation between evidence sources that the naive
// Bayes product would otherwise double count.
const (
	WeightWeather     = 0.6
	WeightDTC         = 0.8
	WeightMileage     = 0.7
	WeightEnvironment = 0.6
	WeightRecalls     = 0.5
)

// Environment factor weights over the four exposure scalars. They sum to 1
// so the blended score stays on the 0-100 scale of its inputs.
const (
	EnvWeightRust    = 0.30
	EnvWeightStopGo  = 0.25
	EnvWeightTerrain = 0.25
	EnvWeightThermal = 0.20
)

// DTCCounts carries diagnostic trouble code counts per subsystem.
type DTCCounts struct {
	Powertrain float64 `json:"powertrain"`
	Body       float64 `json:"body"`
	Chassis    float64 `json:"chassis"`
	Network    float64 `json:"network"`
}

// Count returns the count for a cohort category.
func (d DTCCounts) Count(c cohort.Category) float64 {
	switch c {
	case cohort.Powertrain:
		return d.Powertrain
	case cohort.Body:
		return d.Body
	case cohort.Chassis:
		return d.Chassis
	case cohort.Network:
		return d.Network
	default:
		return 0
	}
}

// Map converts the counts to the keyed form used by cohort assessment.
func (d DTCCounts) Map() map[cohort.Category]float64 {
	return map[cohort.Category]float64{
		cohort.Powertrain: d.Powertrain,
		cohort.Body:       d.Body,
		cohort.Chassis:    d.Chassis,
		cohort.Network:    d.Network,
	}
}

// EnvironmentExposure holds the four 0-100 environmental severity scalars.
type EnvironmentExposure struct {
	RustBeltSeverity  float64 `json:"rust_belt_severity"`
	StopGoTraffic     float64 `json:"stop_go_traffic"`
	TerrainDifficulty float64 `json:"terrain_difficulty"`
	ThermalStress     float64 `json:"thermal_stress"`
}

// VehicleRiskInput is one vehicle's evidence snapshot. HealthScore is
// 0-100 with 100 meaning pristine.
type VehicleRiskInput struct {
	VIN             string              `json:"vin"`
	Mileage         float64             `json:"mileage"`
	VehicleAgeYears float64             `json:"vehicle_age_years"`
	HealthScore     float64             `json:"health_score"`
	DTCs            DTCCounts           `json:"dtcs"`
	Environment     EnvironmentExposure `json:"environment"`
	OpenRecalls     int                 `json:"open_recalls"`
}

// LikelihoodBreakdown reports each evidence factor's likelihood ratio
// before dampening. A value of 1.0 means the factor was neutral.
type LikelihoodBreakdown struct {
	Weather     float64 `json:"weather"`
	DTC         float64 `json:"dtc"`
	Mileage     float64 `json:"mileage"`
	Environment float64 `json:"environment"`
	Recalls     float64 `json:"recalls"`
}

// VehicleRiskResult is the full scoring output for one vehicle.
// PriorityScore is always round(Posterior*100).
type VehicleRiskResult struct {
	VIN                string              `json:"vin"`
	Prior              float64             `json:"prior"`
	Likelihoods        LikelihoodBreakdown `json:"likelihoods"`
	CombinedLikelihood float64             `json:"combined_likelihood"`
	Posterior          float64             `json:"posterior"`
	PriorityScore      int                 `json:"priority_score"`
	EnvironmentScore   float64             `json:"environment_score"`
	Cohort             outlier.Assessment  `json:"cohort_comparison"`
	Weather            WeatherConditions   `json:"weather_applied"`
	MileageBand        string              `json:"mileage_band"`
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Normalized clamps raw fields into the ranges the model is defined over.
// The engine is total: garbage measurements degrade to boundary values
// rather than errors. Rejecting malformed input is the caller's job.
func (in VehicleRiskInput) Normalized() VehicleRiskInput {
	out := in
	out.Mileage = math.Max(0, in.Mileage)
	out.VehicleAgeYears = math.Max(0, in.VehicleAgeYears)
	out.HealthScore = clamp(in.HealthScore, 0, 100)
	out.DTCs.Powertrain = math.Max(0, in.DTCs.Powertrain)
	out.DTCs.Body = math.Max(0, in.DTCs.Body)
	out.DTCs.Chassis = math.Max(0, in.DTCs.Chassis)
	out.DTCs.Network = math.Max(0, in.DTCs.Network)
	out.Environment.RustBeltSeverity = clamp(in.Environment.RustBeltSeverity, 0, 100)
	out.Environment.StopGoTraffic = clamp(in.Environment.StopGoTraffic, 0, 100)
	out.Environment.TerrainDifficulty = clamp(in.Environment.TerrainDifficulty, 0, 100)
	out.Environment.ThermalStress = clamp(in.Environment.ThermalStress, 0, 100)
	if out.OpenRecalls < 0 {
		out.OpenRecalls = 0
	}
	return out
}

// Prior computes the demographic prior from age and health before any
// evidence is applied.
func Prior(ageYears, healthScore float64) float64 {
	ageFactor := math.Min(1+ageYears/10, MaxAgeFactor)
	healthFactor := 1 + (100-healthScore)/100
	return clamp(BaseFailureRate*ageFactor*healthFactor, 0, MaxPrior)
}

// ZToLikelihood maps a standardized DTC distance onto a likelihood ratio.
// The curve is anchored so that three standard deviations above the cohort
// mean triples the odds and three below cuts them to a third.
func ZToLikelihood(z float64) float64 {
	z = clamp(z, -MaxZScore, MaxZScore)
	return math.Exp(z * math.Log(3) / 3)
}

// DTCLikelihood standardizes each category count against the mileage
// cohort, maps to per-category ratios, and reduces with a geometric mean so
// one noisy subsystem cannot swamp the others.
func DTCLikelihood(band cohort.Band, dtcs DTCCounts) float64 {
	sumLog := 0.0
	for _, cat := range cohort.Categories {
		stats := cohort.Lookup(band, cat)
		z := cohort.ZScore(dtcs.Count(cat), stats)
		sumLog += math.Log(ZToLikelihood(z))
	}
	return math.Exp(sumLog / float64(len(cohort.Categories)))
}

// MileageLikelihood compares the odometer against the age-expected mileage.
// A stepped ratio keeps the factor insensitive to small odometer noise.
func MileageLikelihood(mileage, ageYears float64) float64 {
	expected := ExpectedMilesPerYear * ageYears
	if expected < 1 {
		expected = 1
	}
	ratio := mileage / expected
	switch {
	case ratio > 1.5:
		return 1.5
	case ratio > 1.2:
		return 1.25
	default:
		return 1.0
	}
}

// EnvironmentScore blends the four exposure scalars into one 0-100 score.
func EnvironmentScore(env EnvironmentExposure) float64 {
	return EnvWeightRust*env.RustBeltSeverity +
		EnvWeightStopGo*env.StopGoTraffic +
		EnvWeightTerrain*env.TerrainDifficulty +
		EnvWeightThermal*env.ThermalStress
}

// EnvironmentLikelihood maps the blended exposure score onto a ratio in
// [1,2]. Environment never argues for lower risk; absence of exposure is
// neutral, not protective.
func EnvironmentLikelihood(env EnvironmentExposure) float64 {
	return 1 + EnvironmentScore(env)/100
}

// RecallLikelihood maps open recall count onto a ratio, 10% odds per
// recall, counted up to MaxRecalls and bounded by MaxRecallLikelihood.
func RecallLikelihood(openRecalls int) float64 {
	n := openRecalls
	if n < 0 {
		n = 0
	}
	if n > MaxRecalls {
		n = MaxRecalls
	}
	return math.Min(1+0.10*float64(n), MaxRecallLikelihood)
}

// CombineLikelihoods folds the per-factor ratios into one combined ratio in
// log space, applying the dampening weights. Order is fixed; both backends
// must produce bit-identical sums.
func CombineLikelihoods(lb LikelihoodBreakdown) float64 {
	sum := WeightWeather * math.Log(lb.Weather)
	sum += WeightDTC * math.Log(lb.DTC)
	sum += WeightMileage * math.Log(lb.Mileage)
	sum += WeightEnvironment * math.Log(lb.Environment)
	sum += WeightRecalls * math.Log(lb.Recalls)
	return math.Exp(sum)
}

// Posterior applies the odds-form Bayesian update and bounds the result.
func Posterior(prior, combined float64) float64 {
	posterior := (prior * combined) / ((1 - prior) + prior*combined)
	return clamp(posterior, 0, 1)
}

// Score runs the full inference pipeline for one vehicle under the given
// weather snapshot. It never errors and never panics on finite input.
func Score(in VehicleRiskInput, w WeatherConditions) VehicleRiskResult {
	in = in.Normalized()
	band := cohort.BandFor(in.Mileage)

	lb := LikelihoodBreakdown{
		Weather:     WeatherLikelihood(w),
		DTC:         DTCLikelihood(band, in.DTCs),
		Mileage:     MileageLikelihood(in.Mileage, in.VehicleAgeYears),
		Environment: EnvironmentLikelihood(in.Environment),
		Recalls:     RecallLikelihood(in.OpenRecalls),
	}

	prior := Prior(in.VehicleAgeYears, in.HealthScore)
	combined := CombineLikelihoods(lb)
	posterior := Posterior(prior, combined)

	return VehicleRiskResult{
		VIN:                in.VIN,
		Prior:              prior,
		Likelihoods:        lb,
		CombinedLikelihood: combined,
		Posterior:          posterior,
		PriorityScore:      int(math.Round(posterior * 100)),
		EnvironmentScore:   EnvironmentScore(in.Environment),
		Cohort:             outlier.Assess(in.Mileage, in.DTCs.Map()),
		Weather:            w,
		MileageBand:        band.String(),
	}
}
