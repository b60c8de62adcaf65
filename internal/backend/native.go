package backend

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/beargallbladder/fleetapitest-sub000/internal/domain/cohort"
	"github.com/beargallbladder/fleetapitest-sub000/internal/domain/outlier"
	"github.com/beargallbladder/fleetapitest-sub000/internal/domain/risk"
	"github.com/beargallbladder/fleetapitest-sub000/internal/domain/stressor"
)

const numCategories = 4

// Coefficient block layout: NumBands x numCategories x (mean, std), each a
// big-endian float64. The block is packed from the cohort table, checksummed,
// and decoded back into flat arrays; any corruption or disagreement with the
// reference engine aborts init.
const (
	blockFloats = cohort.NumBands * numCategories * 2
	blockBytes  = blockFloats * 8
)

// nativeBackend is the table-driven engine. The cohort distributions live
// in flat arrays instead of per-band maps, the weather factor is hoisted
// out of batch loops, and per-call map allocations are gone. Arithmetic is
// kept in the reference order so results match the portable engine bit for
// bit.
type nativeBackend struct {
	means [cohort.NumBands][numCategories]float64
	stds  [cohort.NumBands][numCategories]float64
}

// NewNative builds the table-driven engine and proves it against the
// reference. Every failure path returns an error; the caller decides the
// fallback.
func NewNative(reference RiskBackend) (RiskBackend, error) {
	nb := &nativeBackend{}

	block, sum := packCoefficientBlock()
	if err := nb.loadCoefficientBlock(block, sum); err != nil {
		return nil, fmt.Errorf("native backend init: %w", err)
	}
	if err := nb.verifyAgainst(reference); err != nil {
		return nil, fmt.Errorf("native backend init: %w", err)
	}
	return nb, nil
}

func (nb *nativeBackend) Name() string { return "native" }

// packCoefficientBlock serializes the cohort table into the block format
// and returns the block with its checksum.
func packCoefficientBlock() ([]byte, uint32) {
	buf := make([]byte, 0, blockBytes)
	var scratch [8]byte
	for b := 0; b < cohort.NumBands; b++ {
		for _, cat := range cohort.Categories {
			s := cohort.Lookup(cohort.Band(b), cat)
			binary.BigEndian.PutUint64(scratch[:], math.Float64bits(s.Mean))
			buf = append(buf, scratch[:]...)
			binary.BigEndian.PutUint64(scratch[:], math.Float64bits(s.StdDev))
			buf = append(buf, scratch[:]...)
		}
	}
	return buf, crc32.ChecksumIEEE(buf)
}

// loadCoefficientBlock verifies and decodes a coefficient block into the
// backend's flat tables.
func (nb *nativeBackend) loadCoefficientBlock(block []byte, sum uint32) error {
	if len(block) != blockBytes {
		return fmt.Errorf("coefficient block: want %d bytes, got %d", blockBytes, len(block))
	}
	if got := crc32.ChecksumIEEE(block); got != sum {
		return fmt.Errorf("coefficient block: checksum mismatch (got %08x, want %08x)", got, sum)
	}

	off := 0
	for b := 0; b < cohort.NumBands; b++ {
		for c := 0; c < numCategories; c++ {
			mean := math.Float64frombits(binary.BigEndian.Uint64(block[off:]))
			std := math.Float64frombits(binary.BigEndian.Uint64(block[off+8:]))
			off += 16
			if !finite(mean) || !finite(std) || std < 0 {
				return fmt.Errorf("coefficient block: band %d category %d is degenerate", b, c)
			}
			nb.means[b][c] = mean
			nb.stds[b][c] = std
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// verifyAgainst probes both engines with fixed vectors spanning the input
// range and demands exact agreement. A native build that cannot reproduce
// the reference has no business serving traffic.
func (nb *nativeBackend) verifyAgainst(reference RiskBackend) error {
	probes := []risk.VehicleRiskInput{
		{
			VIN: "PROBE-TYPICAL", Mileage: 75000, VehicleAgeYears: 4, HealthScore: 72,
			DTCs:        risk.DTCCounts{Powertrain: 2, Body: 1, Chassis: 1, Network: 0},
			Environment: risk.EnvironmentExposure{RustBeltSeverity: 30, StopGoTraffic: 50, TerrainDifficulty: 20, ThermalStress: 40},
		},
		{
			VIN: "PROBE-NEW", Mileage: 800, VehicleAgeYears: 0, HealthScore: 100,
		},
		{
			VIN: "PROBE-WORN", Mileage: 240000, VehicleAgeYears: 15, HealthScore: 18,
			DTCs:        risk.DTCCounts{Powertrain: 9, Body: 4, Chassis: 6, Network: 3},
			Environment: risk.EnvironmentExposure{RustBeltSeverity: 95, StopGoTraffic: 90, TerrainDifficulty: 70, ThermalStress: 85},
			OpenRecalls: 4,
		},
	}
	climates := []risk.WeatherConditions{
		risk.DefaultWeather(),
		{TemperatureF: 104, HumidityPct: 88, Precipitation: 0.8, TempSwingF: 28},
	}

	for _, in := range probes {
		for _, w := range climates {
			got := nb.ScoreOne(in, w)
			want := reference.ScoreOne(in, w)
			if got.Posterior != want.Posterior ||
				got.CombinedLikelihood != want.CombinedLikelihood ||
				got.PriorityScore != want.PriorityScore {
				return fmt.Errorf("self check: %s diverged from reference (posterior %.17g vs %.17g)",
					in.VIN, got.Posterior, want.Posterior)
			}
		}
	}
	return nil
}

func (nb *nativeBackend) ScoreOne(in risk.VehicleRiskInput, w risk.WeatherConditions) risk.VehicleRiskResult {
	var res risk.VehicleRiskResult
	nb.scoreInto(&res, in, w, risk.WeatherLikelihood(w))
	return res
}

func (nb *nativeBackend) ScoreBatch(ins []risk.VehicleRiskInput, w risk.WeatherConditions) []risk.VehicleRiskResult {
	out := make([]risk.VehicleRiskResult, len(ins))
	// Weather does not vary within a batch; compute the factor once.
	wlr := risk.WeatherLikelihood(w)
	for i := range ins {
		nb.scoreInto(&out[i], ins[i], w, wlr)
	}
	return out
}

// AssessStressors shares the domain implementation with the portable
// engine. The stressor model is a handful of multiplies per call; the
// native specialization pays off on the scoring path only.
func (nb *nativeBackend) AssessStressors(in stressor.ExposureInput) stressor.Result {
	return stressor.Assess(in)
}

// scoreInto runs the full pipeline writing into res. The DTC factor and the
// cohort assessment share one pass over the flat tables. Operation order
// mirrors risk.Score exactly.
func (nb *nativeBackend) scoreInto(res *risk.VehicleRiskResult, in risk.VehicleRiskInput, w risk.WeatherConditions, weatherLR float64) {
	in = in.Normalized()
	band := cohort.BandFor(in.Mileage)
	bi := int(band)

	sumLog := 0.0
	sumZ := 0.0
	cats := make([]outlier.CategoryScore, numCategories)
	worst := outlier.StatusNormal
	for ci, cat := range cohort.Categories {
		count := in.DTCs.Count(cat)
		std := nb.stds[bi][ci]
		if std < cohort.MinStdDev {
			std = cohort.MinStdDev
		}
		z := (count - nb.means[bi][ci]) / std

		zc := z
		if zc < -risk.MaxZScore {
			zc = -risk.MaxZScore
		}
		if zc > risk.MaxZScore {
			zc = risk.MaxZScore
		}
		lr := math.Exp(zc * math.Log(3) / 3)
		sumLog += math.Log(lr)

		status := outlier.Classify(z)
		cats[ci] = outlier.CategoryScore{
			Category: cat,
			Count:    count,
			Mean:     nb.means[bi][ci],
			StdDev:   nb.stds[bi][ci],
			ZScore:   z,
			Status:   status,
		}
		sumZ += z
		worst = outlier.Worse(worst, status)
	}

	lb := risk.LikelihoodBreakdown{
		Weather:     weatherLR,
		DTC:         math.Exp(sumLog / float64(numCategories)),
		Mileage:     risk.MileageLikelihood(in.Mileage, in.VehicleAgeYears),
		Environment: risk.EnvironmentLikelihood(in.Environment),
		Recalls:     risk.RecallLikelihood(in.OpenRecalls),
	}

	prior := risk.Prior(in.VehicleAgeYears, in.HealthScore)
	combined := risk.CombineLikelihoods(lb)
	posterior := risk.Posterior(prior, combined)

	*res = risk.VehicleRiskResult{
		VIN:                in.VIN,
		Prior:              prior,
		Likelihoods:        lb,
		CombinedLikelihood: combined,
		Posterior:          posterior,
		PriorityScore:      int(math.Round(posterior * 100)),
		EnvironmentScore:   risk.EnvironmentScore(in.Environment),
		Cohort: outlier.Assessment{
			Band:         band,
			BandLabel:    band.String(),
			Categories:   cats,
			OutlierScore: sumZ / float64(numCategories),
			WorstStatus:  worst,
		},
		Weather:     w,
		MileageBand: band.String(),
	}
}
