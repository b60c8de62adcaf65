package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beargallbladder/fleetapitest-sub000/internal/domain/cohort"
)

// referenceInput is the worked scenario used across the test suite: a
// four-year-old vehicle at 75k miles, mildly degraded health, a small
// cluster of codes, moderate environment, no recalls, default weather.
func referenceInput() VehicleRiskInput {
	return VehicleRiskInput{
		VIN:             "1FTEW1EP5MKE00001",
		Mileage:         75000,
		VehicleAgeYears: 4,
		HealthScore:     72,
		DTCs:            DTCCounts{Powertrain: 2, Body: 1, Chassis: 1, Network: 0},
		Environment: EnvironmentExposure{
			RustBeltSeverity:  30,
			StopGoTraffic:     50,
			TerrainDifficulty: 20,
			ThermalStress:     40,
		},
		OpenRecalls: 0,
	}
}

func TestScoreReferenceScenario(t *testing.T) {
	res := Score(referenceInput(), DefaultWeather())

	// Prior: 0.023 * min(1+0.4, 2) * (1 + 0.28) = 0.041216.
	assert.InDelta(t, 0.041216, res.Prior, 1e-12)

	// Default weather and zero recalls are exactly neutral.
	assert.Equal(t, 1.0, res.Likelihoods.Weather)
	assert.Equal(t, 1.0, res.Likelihoods.Recalls)

	// 75k miles against 48k expected is past the 1.5 ratio step.
	assert.Equal(t, 1.5, res.Likelihoods.Mileage)

	// Environment: 0.30*30 + 0.25*50 + 0.25*20 + 0.20*40 = 34.5.
	assert.InDelta(t, 34.5, res.EnvironmentScore, 1e-9)
	assert.InDelta(t, 1.345, res.Likelihoods.Environment, 1e-9)

	// DTC factor recomputed from the cohort table directly.
	band := cohort.BandFor(75000)
	require.Equal(t, "75k-100k", band.String())
	sumLog := 0.0
	counts := map[cohort.Category]float64{
		cohort.Powertrain: 2, cohort.Body: 1, cohort.Chassis: 1, cohort.Network: 0,
	}
	for _, cat := range cohort.Categories {
		z := cohort.ZScore(counts[cat], cohort.Lookup(band, cat))
		sumLog += math.Log(math.Exp(z * math.Log(3) / 3))
	}
	wantDTC := math.Exp(sumLog / 4)
	assert.InDelta(t, wantDTC, res.Likelihoods.DTC, 1e-12)
	assert.InDelta(t, 0.8493, res.Likelihoods.DTC, 1e-3)

	assert.InDelta(t, 1.3923, res.CombinedLikelihood, 1e-3)
	assert.InDelta(t, 0.0565, res.Posterior, 5e-4)
	assert.Equal(t, 6, res.PriorityScore)
	assert.Equal(t, int(math.Round(res.Posterior*100)), res.PriorityScore)
}

func TestScoreIsIdempotent(t *testing.T) {
	in := referenceInput()
	w := DefaultWeather()
	first := Score(in, w)
	second := Score(in, w)
	assert.Equal(t, first, second)
}

func TestScoreBounds(t *testing.T) {
	// Sweep a coarse grid of extreme inputs; every result must respect the
	// probability bounds and the score identity.
	ages := []float64{0, 1, 4, 12, 40}
	healths := []float64{0, 35, 72, 100}
	mileages := []float64{0, 12000, 75000, 200000, 900000}
	dtcs := []float64{0, 3, 25}
	recalls := []int{0, 2, 9}

	for _, age := range ages {
		for _, health := range healths {
			for _, mi := range mileages {
				for _, n := range dtcs {
					for _, r := range recalls {
						in := VehicleRiskInput{
							VIN:             "GRID",
							Mileage:         mi,
							VehicleAgeYears: age,
							HealthScore:     health,
							DTCs:            DTCCounts{Powertrain: n, Body: n, Chassis: n, Network: n},
							Environment:     EnvironmentExposure{100, 100, 100, 100},
							OpenRecalls:     r,
						}
						res := Score(in, DefaultWeather())

						require.GreaterOrEqual(t, res.Prior, 0.0)
						require.LessOrEqual(t, res.Prior, MaxPrior)
						require.GreaterOrEqual(t, res.Posterior, 0.0)
						require.LessOrEqual(t, res.Posterior, 1.0)
						require.GreaterOrEqual(t, res.PriorityScore, 0)
						require.LessOrEqual(t, res.PriorityScore, 100)
						require.Equal(t, int(math.Round(res.Posterior*100)), res.PriorityScore)
						require.False(t, math.IsNaN(res.CombinedLikelihood))
					}
				}
			}
		}
	}
}

func TestScoreMonotonicInDTCs(t *testing.T) {
	in := referenceInput()
	w := DefaultWeather()

	prev := Score(in, w)
	for add := 1.0; add <= 6; add++ {
		bumped := in
		bumped.DTCs.Powertrain = in.DTCs.Powertrain + add
		cur := Score(bumped, w)
		assert.GreaterOrEqual(t, cur.Posterior, prev.Posterior,
			"adding powertrain codes must not lower risk (add=%.0f)", add)
		prev = cur
	}
}

func TestScoreMonotonicInHealth(t *testing.T) {
	in := referenceInput()
	w := DefaultWeather()

	prev := -1.0
	for health := 100.0; health >= 0; health -= 20 {
		cur := in
		cur.HealthScore = health
		res := Score(cur, w)
		if prev >= 0 {
			assert.GreaterOrEqual(t, res.Posterior, prev,
				"lower health must not lower risk (health=%.0f)", health)
		}
		prev = res.Posterior
	}
}

func TestZToLikelihoodAnchors(t *testing.T) {
	assert.Equal(t, 1.0, ZToLikelihood(0), "cohort mean is neutral")
	assert.InDelta(t, 3.0, ZToLikelihood(3), 1e-9, "three sigma above triples the odds")
	assert.InDelta(t, 1.0/3.0, ZToLikelihood(-3), 1e-9, "three sigma below cuts odds to a third")

	// Clamped beyond three sigma.
	assert.Equal(t, ZToLikelihood(3), ZToLikelihood(7))
	assert.Equal(t, ZToLikelihood(-3), ZToLikelihood(-12))

	// Symmetry: LR(z) * LR(-z) == 1.
	for _, z := range []float64{0.5, 1.0, 2.2, 3.0} {
		assert.InDelta(t, 1.0, ZToLikelihood(z)*ZToLikelihood(-z), 1e-12)
	}
}

func TestPriorClamps(t *testing.T) {
	// Worst demographic case: old and dead. 0.023*2*2 = 0.092, under the cap.
	assert.InDelta(t, 0.092, Prior(40, 0), 1e-12)
	assert.InDelta(t, 0.023, Prior(0, 100), 1e-12, "new pristine vehicle sits at the base rate")
	assert.LessOrEqual(t, Prior(1000, -500), MaxPrior)
}

func TestMileageLikelihoodSteps(t *testing.T) {
	cases := []struct {
		mileage, age, want float64
	}{
		{12000, 1, 1.0},
		{14500, 1, 1.25}, // ratio 1.208
		{20000, 1, 1.5},  // ratio 1.67
		{75000, 4, 1.5},  // ratio 1.5625
		{50000, 4, 1.0},  // ratio 1.04
		{60000, 4, 1.25}, // ratio exactly 1.25, inside the middle step
		{100, 0, 1.5},    // age zero floors expected mileage at 1
		{0, 0, 1.0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MileageLikelihood(tc.mileage, tc.age),
			"mileage=%.0f age=%.0f", tc.mileage, tc.age)
	}
}

func TestRecallLikelihoodCap(t *testing.T) {
	assert.Equal(t, 1.0, RecallLikelihood(0))
	assert.InDelta(t, 1.2, RecallLikelihood(2), 1e-12)
	assert.InDelta(t, 1.5, RecallLikelihood(5), 1e-12)
	assert.InDelta(t, 1.5, RecallLikelihood(11), 1e-12, "recalls beyond five saturate")
	assert.Equal(t, 1.0, RecallLikelihood(-3))
}

func TestPosteriorOddsForm(t *testing.T) {
	// Neutral evidence returns the prior untouched.
	assert.InDelta(t, 0.3, Posterior(0.3, 1.0), 1e-12)
	// LR of 3 on a 0.5 prior gives odds 3:1.
	assert.InDelta(t, 0.75, Posterior(0.5, 3.0), 1e-12)
	// Degenerate priors stay at their fixed points.
	assert.Equal(t, 0.0, Posterior(0, 5))
	assert.Equal(t, 1.0, Posterior(1, 5))
}

func TestNormalizationMakesEngineTotal(t *testing.T) {
	in := VehicleRiskInput{
		VIN:             "JUNK",
		Mileage:         -200000,
		VehicleAgeYears: -3,
		HealthScore:     250,
		DTCs:            DTCCounts{Powertrain: -4},
		Environment:     EnvironmentExposure{-50, 900, -1, 10000},
		OpenRecalls:     -7,
	}
	res := Score(in, DefaultWeather())

	assert.GreaterOrEqual(t, res.Posterior, 0.0)
	assert.LessOrEqual(t, res.Posterior, 1.0)
	assert.False(t, math.IsNaN(res.Posterior))
	assert.False(t, math.IsNaN(res.CombinedLikelihood))
}
