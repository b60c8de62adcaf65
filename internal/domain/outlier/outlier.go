// Package outlier classifies a vehicle's DTC counts against its mileage
// cohort. Classification uses raw z-scores: unlike the likelihood curve in
// the risk engine, nothing here is capped, so a wildly abnormal vehicle
// reports the full distance from its peers.
package outlier

import (
	"github.com/beargallbladder/fleetapitest-sub000/internal/domain/cohort"
)

// Status grades how far a vehicle sits from its cohort.
type Status string

const (
	StatusNormal   Status = "normal"
	StatusWatch    Status = "watch"
	StatusModerate Status = "moderate_outlier"
	StatusCritical Status = "critical_outlier"
)

// Thresholds on |z| for each grade.
const (
	criticalZ = 2.0
	moderateZ = 1.5
	watchZ    = 1.0
)

// Classify grades a raw z-score. Both tails count: a vehicle with far fewer
// codes than its cohort is as anomalous as one with far more.
func Classify(z float64) Status {
	abs := z
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs > criticalZ:
		return StatusCritical
	case abs > moderateZ:
		return StatusModerate
	case abs > watchZ:
		return StatusWatch
	default:
		return StatusNormal
	}
}

// severity orders statuses for worst-of reduction.
var severity = map[Status]int{
	StatusNormal:   0,
	StatusWatch:    1,
	StatusModerate: 2,
	StatusCritical: 3,
}

// Worse returns the more severe of two statuses.
func Worse(a, b Status) Status {
	if severity[b] > severity[a] {
		return b
	}
	return a
}

// CategoryScore is the standardized result for a single DTC category.
type CategoryScore struct {
	Category cohort.Category `json:"category"`
	Count    float64         `json:"count"`
	Mean     float64         `json:"cohort_mean"`
	StdDev   float64         `json:"cohort_std_dev"`
	ZScore   float64         `json:"z_score"`
	Status   Status          `json:"status"`
}

// Assessment is the full cohort comparison for one vehicle.
type Assessment struct {
	Band         cohort.Band     `json:"-"`
	BandLabel    string          `json:"mileage_band"`
	Categories   []CategoryScore `json:"categories"`
	OutlierScore float64         `json:"outlier_score"`
	WorstStatus  Status          `json:"worst_status"`
}

// Assess standardizes each DTC category against the vehicle's mileage cohort
// and reduces to an overall outlier score (the mean of the raw per-category
// z-scores) plus the worst per-category status.
func Assess(mileage float64, counts map[cohort.Category]float64) Assessment {
	band := cohort.BandFor(mileage)
	out := Assessment{
		Band:        band,
		BandLabel:   band.String(),
		Categories:  make([]CategoryScore, 0, len(cohort.Categories)),
		WorstStatus: StatusNormal,
	}

	sum := 0.0
	for _, cat := range cohort.Categories {
		stats := cohort.Lookup(band, cat)
		count := counts[cat]
		z := cohort.ZScore(count, stats)
		status := Classify(z)

		out.Categories = append(out.Categories, CategoryScore{
			Category: cat,
			Count:    count,
			Mean:     stats.Mean,
			StdDev:   stats.StdDev,
			ZScore:   z,
			Status:   status,
		})
		sum += z
		out.WorstStatus = Worse(out.WorstStatus, status)
	}

	out.OutlierScore = sum / float64(len(cohort.Categories))
	return out
}
