// Package fleet synthesizes fleet-relative context for a priority score: a
// percentile against an illustrative score distribution and a short
// historical trend. Both are presentation aids. The distribution is not
// measured from live fleet data and every output is labeled accordingly.
package fleet

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"
)

// DefaultFleetSize is assumed when the caller does not know the fleet size.
const DefaultFleetSize = 1000

// bucketWeights shapes the synthetic score distribution across ten buckets
// of width ten. The mass peaks in the 40-50 bucket so a typical fleet
// centers near 45. Values are percentages and sum to 100.
var bucketWeights = [10]int{2, 4, 8, 14, 20, 18, 14, 10, 6, 4}

// BucketCount is one bar of the synthetic histogram.
type BucketCount struct {
	Label string `json:"label"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
	Count int    `json:"count"`
}

// Comparison places one vehicle's score within the synthetic distribution.
type Comparison struct {
	Score      int           `json:"score"`
	FleetSize  int           `json:"fleet_size"`
	Bucket     int           `json:"bucket"`
	Percentile float64       `json:"percentile"`
	Histogram  []BucketCount `json:"histogram"`
	Synthetic  bool          `json:"synthetic"`
}

// CompareToFleet buckets the score into the synthetic distribution and
// reports the share of the fleet in strictly lower buckets. Vehicles in the
// same bucket do not count toward the percentile. Non-positive fleet sizes
// fall back to DefaultFleetSize.
func CompareToFleet(score, fleetSize int) Comparison {
	if fleetSize < 1 {
		fleetSize = DefaultFleetSize
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	bucket := score / 10
	if bucket > 9 {
		bucket = 9
	}

	hist := make([]BucketCount, 10)
	total := 0
	peak := 0
	for i := range hist {
		count := fleetSize * bucketWeights[i] / 100
		hist[i] = BucketCount{
			Label: fmt.Sprintf("%d-%d", i*10, i*10+10),
			Min:   i * 10,
			Max:   i*10 + 10,
			Count: count,
		}
		total += count
		if bucketWeights[i] > bucketWeights[peak] {
			peak = i
		}
	}
	// Integer division sheds a few vehicles; park the remainder in the peak
	// bucket so counts always sum to the fleet size.
	hist[peak].Count += fleetSize - total

	below := 0
	for i := 0; i < bucket; i++ {
		below += hist[i].Count
	}

	return Comparison{
		Score:      score,
		FleetSize:  fleetSize,
		Bucket:     bucket,
		Percentile: float64(below) / float64(fleetSize) * 100,
		Histogram:  hist,
		Synthetic:  true,
	}
}

// TrendPoint is one weekly sample of the synthesized score history.
type TrendPoint struct {
	WeekStart time.Time `json:"week_start"`
	Score     int       `json:"score"`
}

// TrendWeeks is the length of the synthesized history.
const TrendWeeks = 12

// SeedFromVIN derives a stable synthesis seed from a VIN so repeated calls
// for the same vehicle draw the same trend.
func SeedFromVIN(vin string) int64 {
	h := fnv.New64a()
	h.Write([]byte(vin))
	return int64(h.Sum64())
}

// SynthesizeTrend generates TrendWeeks weekly scores ending at the current
// score. History walks backward with a slight downward drift plus seeded
// jitter, modeling risk that accumulated gradually. The generator is local;
// the global rand source is never touched.
func SynthesizeTrend(current int, now time.Time, seed int64) []TrendPoint {
	rng := rand.New(rand.NewSource(seed))

	points := make([]TrendPoint, TrendWeeks)
	week := now.Truncate(24 * time.Hour)
	score := current
	for i := TrendWeeks - 1; i >= 0; i-- {
		points[i] = TrendPoint{WeekStart: week, Score: score}
		week = week.AddDate(0, 0, -7)

		// Earlier weeks drift lower with +/-4 points of noise.
		score -= 1
		score += rng.Intn(9) - 4
		if score < 0 {
			score = 0
		}
		if score > 100 {
			score = 100
		}
	}
	return points
}
