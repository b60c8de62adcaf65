// Package geo scores regions for environmental vehicle wear. Seven
// heuristics award severity points from geography alone: road salt,
// coastal salt air, stop-and-go density, rural road wear, mountainous
// terrain, heat, and cold. The totals feed lead prioritization and can
// pre-fill the risk engine's environment scalars for vehicles whose only
// known exposure is where they live.
package geo

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/beargallbladder/fleetapitest-sub000/internal/domain/risk"
)

// RiskFactors breaks the severity total into per-heuristic points.
type RiskFactors struct {
	Corrosion int `json:"corrosion"`
	Coastal   int `json:"coastal_salt"`
	UrbanWear int `json:"urban_wear"`
	RuralRoad int `json:"rural_road"`
	Terrain   int `json:"terrain_stress"`
	Heat      int `json:"heat_stress"`
	Cold      int `json:"cold_stress"`
}

// RegionSeverity is the complete severity and lead profile for one ZIP.
type RegionSeverity struct {
	Zip               string      `json:"zip"`
	City              string      `json:"city"`
	State             string      `json:"state"`
	Lat               float64     `json:"lat"`
	Lon               float64     `json:"lon"`
	PopDensity        float64     `json:"population_density"`
	TotalSeverity     int         `json:"total_severity_score"`
	Factors           RiskFactors `json:"risk_breakdown"`
	PrimaryRisk       string      `json:"primary_risk"`
	SecondaryRisks    []string    `json:"secondary_risks"`
	RiskBucket        string      `json:"risk_bucket"`
	RecommendedUpsell []string    `json:"recommended_upsell"`
	LeadPriority      string      `json:"lead_priority"`
}

// Lead priority cutoffs on the total severity score.
const (
	hotLeadScore  = 60
	warmLeadScore = 35
)

// earthRadiusMiles for haversine distances.
const earthRadiusMiles = 3959.0

// Scorer evaluates regions against a set of geographic tables.
type Scorer struct {
	tables    Tables
	saltBelt  map[string]bool
	coastal   map[string]bool
	mountains map[string]bool
}

// NewScorer builds a Scorer over the given tables.
func NewScorer(tables Tables) *Scorer {
	return &Scorer{
		tables:    tables,
		saltBelt:  toSet(tables.SaltBeltStates),
		coastal:   toSet(tables.CoastalStates),
		mountains: toSet(tables.MountainStates),
	}
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[strings.ToUpper(item)] = true
	}
	return set
}

// Score evaluates one ZIP code. Unknown ZIPs return an error; severity
// scoring itself cannot fail.
func (s *Scorer) Score(zip string) (RegionSeverity, error) {
	zip = strings.TrimSpace(zip)
	info, ok := s.tables.Regions[zip]
	if !ok {
		return RegionSeverity{}, fmt.Errorf("zip %q: no region data", zip)
	}

	factors := RiskFactors{}
	factors.Corrosion = s.saltScore(info.State)
	factors.Coastal = s.coastalScore(info.State, info.Lat, info.Lon)
	factors.UrbanWear, factors.RuralRoad = densityScore(info.PopDensity)
	factors.Terrain = s.terrainScore(zip, info.State)
	factors.Heat, factors.Cold = thermalScore(info.Lat)

	total := factors.Corrosion + factors.Coastal + factors.UrbanWear +
		factors.RuralRoad + factors.Terrain + factors.Heat + factors.Cold
	if total > 100 {
		total = 100
	}

	primary, secondary := rankRisks(factors)

	priority := "cold"
	switch {
	case total >= hotLeadScore:
		priority = "hot"
	case total >= warmLeadScore:
		priority = "warm"
	}

	return RegionSeverity{
		Zip:               zip,
		City:              info.City,
		State:             info.State,
		Lat:               info.Lat,
		Lon:               info.Lon,
		PopDensity:        info.PopDensity,
		TotalSeverity:     total,
		Factors:           factors,
		PrimaryRisk:       primary,
		SecondaryRisks:    secondary,
		RiskBucket:        riskBucket(factors),
		RecommendedUpsell: recommendUpsells(factors),
		LeadPriority:      priority,
	}, nil
}

// ScoreMany evaluates a batch of ZIPs, dropping unknown ones, and returns
// the results sorted by severity descending. Ties keep input order.
func (s *Scorer) ScoreMany(zips []string) []RegionSeverity {
	out := make([]RegionSeverity, 0, len(zips))
	for _, zip := range zips {
		res, err := s.Score(zip)
		if err != nil {
			continue
		}
		out = append(out, res)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalSeverity > out[j].TotalSeverity
	})
	return out
}

// saltScore awards corrosion points for salt belt states.
func (s *Scorer) saltScore(state string) int {
	if s.saltBelt[strings.ToUpper(state)] {
		return 30
	}
	return 0
}

// coastalScore awards marine corrosion points by distance to the nearest
// coastal reference city, for coastal states only.
func (s *Scorer) coastalScore(state string, lat, lon float64) int {
	if !s.coastal[strings.ToUpper(state)] {
		return 0
	}
	dist := s.nearestCoastMiles(lat, lon)
	switch {
	case dist < 20:
		return 15
	case dist < 50:
		return 8
	default:
		return 0
	}
}

func (s *Scorer) nearestCoastMiles(lat, lon float64) float64 {
	min := math.Inf(1)
	for _, p := range s.tables.CoastalPoints {
		if d := haversineMiles(lat, lon, p.Lat, p.Lon); d < min {
			min = d
		}
	}
	return min
}

// densityScore awards wear points at both ends of the density spectrum:
// dense cores grind brakes and starters, very rural areas beat suspensions
// on unpaved roads.
func densityScore(popDensity float64) (urban, rural int) {
	switch {
	case popDensity > 10000:
		return 30, 0
	case popDensity > 5000:
		return 25, 0
	case popDensity > 2000:
		return 15, 0
	case popDensity < 100:
		return 0, 15
	case popDensity < 500:
		return 0, 10
	default:
		return 0, 0
	}
}

// terrainScore awards points for sustained grades, estimated from ZIP
// prefix elevation with state-level fallback. Flatland states score zero
// regardless of elevation estimate.
func (s *Scorer) terrainScore(zip, state string) int {
	if !s.mountains[strings.ToUpper(state)] {
		return 0
	}
	elevation := s.elevationEstimate(zip, state)
	switch {
	case elevation > 7000:
		return 25
	case elevation > 5000:
		return 20
	case elevation > 3000:
		return 12
	case elevation > 2000:
		return 8
	default:
		return 0
	}
}

func (s *Scorer) elevationEstimate(zip, state string) float64 {
	if len(zip) >= 3 {
		if elev, ok := s.tables.ElevationPrefixes[zip[:3]]; ok {
			return elev
		}
	}
	if elev, ok := s.tables.StateElevations[strings.ToUpper(state)]; ok {
		return elev
	}
	return 500
}

// thermalScore awards heat points below 35 degrees latitude and cold
// points above 42.
func thermalScore(lat float64) (heat, cold int) {
	switch {
	case lat < 30:
		heat = 20
	case lat < 35:
		heat = 12
	}
	switch {
	case lat > 45:
		cold = 20
	case lat > 42:
		cold = 12
	}
	return heat, cold
}

// riskBucket assigns the marketing bucket. The dominant factor group must
// also clear its floor; otherwise the region is general.
func riskBucket(f RiskFactors) string {
	corrosion := f.Corrosion + f.Coastal
	thermal := f.Heat + f.Cold

	max := corrosion
	for _, v := range []int{f.Terrain, f.UrbanWear, thermal} {
		if v > max {
			max = v
		}
	}

	switch {
	case max == corrosion && corrosion >= 25:
		return "salt_belt"
	case max == f.Terrain && f.Terrain >= 15:
		return "transmission_cooker"
	case max == f.UrbanWear && f.UrbanWear >= 20:
		return "city_grinder"
	case max == thermal && thermal >= 15:
		return "thermal_stress"
	default:
		return "general"
	}
}

// rankRisks orders the factor groups and returns the primary label plus up
// to two secondary labels scoring at least 5.
func rankRisks(f RiskFactors) (string, []string) {
	type ranked struct {
		score int
		label string
	}
	risks := []ranked{
		{f.Corrosion + f.Coastal, "Corrosion"},
		{f.UrbanWear, "Stop-and-Go Wear"},
		{f.Terrain, "Terrain Stress"},
		{f.Heat, "Heat Stress"},
		{f.Cold, "Cold Start Risk"},
		{f.RuralRoad, "Rural Road Wear"},
	}
	sort.SliceStable(risks, func(i, j int) bool { return risks[i].score > risks[j].score })

	primary := "Low Risk"
	if risks[0].score > 0 {
		primary = risks[0].label
	}
	secondary := make([]string, 0, 2)
	for _, r := range risks[1:3] {
		if r.score >= 5 {
			secondary = append(secondary, r.label)
		}
	}
	return primary, secondary
}

// maxUpsells keeps the recommendation list actionable.
const maxUpsells = 6

// recommendUpsells maps factor scores onto service recommendations,
// deduplicated in rule order.
func recommendUpsells(f RiskFactors) []string {
	var items []string
	if f.Corrosion >= 25 {
		items = append(items, "Undercoating", "Brake Line Inspection", "Caliper Check")
	}
	if f.Coastal >= 10 {
		items = append(items, "Rust Proofing", "Marine Grade Lubricants")
	}
	if f.UrbanWear >= 20 {
		items = append(items, "Brake Rotors", "Starter System Check", "Door Hinge Lube")
	}
	if f.RuralRoad >= 10 {
		items = append(items, "Suspension Inspection", "Alignment Check", "Skid Plate")
	}
	if f.Terrain >= 15 {
		items = append(items, "Transmission Flush", "Coolant Check", "Brake Fluid Flush")
	}
	if f.Heat >= 12 {
		items = append(items, "Battery Load Test", "AC System Check", "Rubber Bushing Inspection")
	}
	if f.Cold >= 12 {
		items = append(items, "Block Heater", "Battery Replacement", "Alternator Test")
	}

	seen := make(map[string]bool, len(items))
	unique := make([]string, 0, maxUpsells)
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		unique = append(unique, item)
		if len(unique) == maxUpsells {
			break
		}
	}
	return unique
}

// EnvironmentFromSeverity projects regional severity points onto the risk
// engine's four 0-100 exposure scalars, for vehicles whose only known
// exposure is their home region. Scales stretch each factor group over its
// usable range and cap at 100.
func EnvironmentFromSeverity(s RegionSeverity) risk.EnvironmentExposure {
	return risk.EnvironmentExposure{
		RustBeltSeverity:  capScale(float64(s.Factors.Corrosion+s.Factors.Coastal), 2),
		StopGoTraffic:     capScale(float64(s.Factors.UrbanWear), 3),
		TerrainDifficulty: capScale(float64(s.Factors.Terrain+s.Factors.RuralRoad), 3),
		ThermalStress:     capScale(float64(s.Factors.Heat+s.Factors.Cold), 2.5),
	}
}

func capScale(v, scale float64) float64 {
	v *= scale
	if v > 100 {
		return 100
	}
	return v
}

// haversineMiles returns the great-circle distance between two coordinates.
func haversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	const degToRad = math.Pi / 180
	lat1, lon1 = lat1*degToRad, lon1*degToRad
	lat2, lon2 = lat2*degToRad, lon2*degToRad

	dlat := lat2 - lat1
	dlon := lon2 - lon1

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMiles * c
}
