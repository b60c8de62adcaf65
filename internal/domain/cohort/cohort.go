// Package cohort holds the historical DTC-count distributions used to
// standardize a vehicle's diagnostic trouble codes against comparable
// vehicles. Cohorts are keyed by mileage band and DTC category.
package cohort

// Category identifies one of the four DTC subsystems tracked per cohort.
type Category string

const (
	Powertrain Category = "powertrain"
	Body       Category = "body"
	Chassis    Category = "chassis"
	Network    Category = "network"
)

// Categories lists the DTC categories in canonical order. Scoring code
// iterates this slice so that both backends visit categories in the same
// order and produce identical floating-point results.
var Categories = []Category{Powertrain, Body, Chassis, Network}

// Stats describes the DTC-count distribution observed for one mileage band
// and category.
type Stats struct {
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"std_dev"`
	SampleSize int     `json:"sample_size"`
}

// MinStdDev floors the standard deviation used in standardization so that a
// degenerate cohort cannot produce an unbounded z-score.
const MinStdDev = 0.1

// Band identifies a mileage cohort. Boundaries are lower-inclusive: an
// odometer reading of exactly 75,000 miles lands in Band75to100k.
type Band int

const (
	Band0to25k Band = iota
	Band25to50k
	Band50to75k
	Band75to100k
	Band100to150k
	Band150kPlus
)

// NumBands is the number of mileage cohorts in the table.
const NumBands = 6

var bandLabels = [NumBands]string{
	"0-25k", "25-50k", "50-75k", "75-100k", "100-150k", "150k+",
}

func (b Band) String() string {
	if b < 0 || int(b) >= NumBands {
		return "unknown"
	}
	return bandLabels[b]
}

// BandFor returns the mileage cohort for an odometer reading. Negative
// readings are treated as zero.
func BandFor(mileage float64) Band {
	switch {
	case mileage < 25000:
		return Band0to25k
	case mileage < 50000:
		return Band25to50k
	case mileage < 75000:
		return Band50to75k
	case mileage < 100000:
		return Band75to100k
	case mileage < 150000:
		return Band100to150k
	default:
		return Band150kPlus
	}
}

// table holds the historical distributions. Values are illustrative fleet
// aggregates: counts rise with mileage, powertrain codes dominate, network
// codes are rarest. Sample sizes record how many vehicles informed each row.
var table = [NumBands]map[Category]Stats{
	Band0to25k: {
		Powertrain: {Mean: 0.8, StdDev: 1.0, SampleSize: 1240},
		Body:       {Mean: 0.5, StdDev: 0.8, SampleSize: 1240},
		Chassis:    {Mean: 0.4, StdDev: 0.7, SampleSize: 1240},
		Network:    {Mean: 0.3, StdDev: 0.6, SampleSize: 1240},
	},
	Band25to50k: {
		Powertrain: {Mean: 1.2, StdDev: 1.3, SampleSize: 1876},
		Body:       {Mean: 0.8, StdDev: 1.0, SampleSize: 1876},
		Chassis:    {Mean: 0.7, StdDev: 0.9, SampleSize: 1876},
		Network:    {Mean: 0.5, StdDev: 0.8, SampleSize: 1876},
	},
	Band50to75k: {
		Powertrain: {Mean: 1.8, StdDev: 1.6, SampleSize: 2143},
		Body:       {Mean: 1.1, StdDev: 1.2, SampleSize: 2143},
		Chassis:    {Mean: 1.0, StdDev: 1.1, SampleSize: 2143},
		Network:    {Mean: 0.8, StdDev: 1.0, SampleSize: 2143},
	},
	Band75to100k: {
		Powertrain: {Mean: 2.4, StdDev: 1.9, SampleSize: 1654},
		Body:       {Mean: 1.5, StdDev: 1.4, SampleSize: 1654},
		Chassis:    {Mean: 1.4, StdDev: 1.3, SampleSize: 1654},
		Network:    {Mean: 1.0, StdDev: 1.1, SampleSize: 1654},
	},
	Band100to150k: {
		Powertrain: {Mean: 3.2, StdDev: 2.3, SampleSize: 1108},
		Body:       {Mean: 2.0, StdDev: 1.7, SampleSize: 1108},
		Chassis:    {Mean: 1.9, StdDev: 1.6, SampleSize: 1108},
		Network:    {Mean: 1.4, StdDev: 1.3, SampleSize: 1108},
	},
	Band150kPlus: {
		Powertrain: {Mean: 4.1, StdDev: 2.8, SampleSize: 592},
		Body:       {Mean: 2.6, StdDev: 2.0, SampleSize: 592},
		Chassis:    {Mean: 2.5, StdDev: 1.9, SampleSize: 592},
		Network:    {Mean: 1.8, StdDev: 1.5, SampleSize: 592},
	},
}

// Lookup returns the distribution stats for a band and category. Unknown
// bands or categories return the zero Stats, which standardizes against the
// MinStdDev floor.
func Lookup(b Band, c Category) Stats {
	if b < 0 || int(b) >= NumBands {
		return Stats{}
	}
	return table[b][c]
}

// LookupByMileage is a convenience for Lookup(BandFor(mileage), c).
func LookupByMileage(mileage float64, c Category) Stats {
	return Lookup(BandFor(mileage), c)
}

// ZScore returns the raw standardized distance of an observed DTC count from
// the cohort distribution. The result is uncapped; callers that feed
// likelihood curves apply their own clamp.
func ZScore(count float64, s Stats) float64 {
	std := s.StdDev
	if std < MinStdDev {
		std = MinStdDev
	}
	return (count - s.Mean) / std
}
