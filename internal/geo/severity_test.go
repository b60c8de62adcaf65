package geo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	loader := NewTablesLoader()
	require.NoError(t, loader.LoadDefault())
	tables, err := loader.Tables()
	require.NoError(t, err)
	return NewScorer(tables)
}

func TestScoreChicagoSaltBelt(t *testing.T) {
	s := newTestScorer(t)
	res, err := s.Score("60601")
	require.NoError(t, err)

	assert.Equal(t, 30, res.Factors.Corrosion, "Illinois is salt belt")
	assert.Equal(t, 0, res.Factors.Coastal)
	assert.Equal(t, 30, res.Factors.UrbanWear, "density 12000 is dense urban")
	assert.Equal(t, 0, res.Factors.Terrain)
	assert.Equal(t, 0, res.Factors.Heat)
	assert.Equal(t, 0, res.Factors.Cold, "41.9 latitude sits below the cold belt")
	assert.Equal(t, 60, res.TotalSeverity)
	assert.Equal(t, "hot", res.LeadPriority)
	assert.Equal(t, "salt_belt", res.RiskBucket)
	assert.Equal(t, "Corrosion", res.PrimaryRisk)
	assert.Equal(t, []string{"Stop-and-Go Wear"}, res.SecondaryRisks)
	assert.Equal(t, []string{
		"Undercoating", "Brake Line Inspection", "Caliper Check",
		"Brake Rotors", "Starter System Check", "Door Hinge Lube",
	}, res.RecommendedUpsell)
}

func TestScoreDenverTerrain(t *testing.T) {
	s := newTestScorer(t)
	res, err := s.Score("80202")
	require.NoError(t, err)

	assert.Equal(t, 20, res.Factors.Terrain, "prefix 802 maps to 6000 ft")
	assert.Equal(t, 15, res.Factors.UrbanWear)
	assert.Equal(t, 0, res.Factors.Corrosion)
	assert.Equal(t, 35, res.TotalSeverity)
	assert.Equal(t, "warm", res.LeadPriority)
	assert.Equal(t, "transmission_cooker", res.RiskBucket)
	assert.Equal(t, "Terrain Stress", res.PrimaryRisk)
	assert.Contains(t, res.RecommendedUpsell, "Transmission Flush")
}

func TestScoreMiamiCoastalHeat(t *testing.T) {
	s := newTestScorer(t)
	res, err := s.Score("33101")
	require.NoError(t, err)

	assert.Equal(t, 15, res.Factors.Coastal, "sits on a coastal reference point")
	assert.Equal(t, 30, res.Factors.UrbanWear)
	assert.Equal(t, 20, res.Factors.Heat, "latitude below 30")
	assert.Equal(t, 65, res.TotalSeverity)
	assert.Equal(t, "hot", res.LeadPriority)
	assert.Equal(t, "city_grinder", res.RiskBucket)
	assert.Equal(t, "Stop-and-Go Wear", res.PrimaryRisk)
	assert.Equal(t, []string{"Heat Stress", "Corrosion"}, res.SecondaryRisks)
	assert.Len(t, res.RecommendedUpsell, 6)
	assert.Equal(t, "Rust Proofing", res.RecommendedUpsell[0])
}

func TestScorePhoenixGeneralBucket(t *testing.T) {
	s := newTestScorer(t)
	res, err := s.Score("85001")
	require.NoError(t, err)

	// Arizona: suburban density, state-default elevation, sun belt latitude.
	// No factor group clears its bucket floor.
	assert.Equal(t, 15, res.Factors.UrbanWear)
	assert.Equal(t, 12, res.Factors.Terrain)
	assert.Equal(t, 12, res.Factors.Heat)
	assert.Equal(t, 39, res.TotalSeverity)
	assert.Equal(t, "warm", res.LeadPriority)
	assert.Equal(t, "general", res.RiskBucket)
}

func TestScoreUnknownZip(t *testing.T) {
	s := newTestScorer(t)
	_, err := s.Score("99999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no region data")
}

func TestScoreManySortsBySeverity(t *testing.T) {
	s := newTestScorer(t)
	out := s.ScoreMany([]string{"85001", "99999", "10001", "80202"})

	require.Len(t, out, 3, "unknown zips are dropped")
	assert.Equal(t, "10001", out[0].Zip)
	assert.Equal(t, "85001", out[1].Zip)
	assert.Equal(t, "80202", out[2].Zip)
	assert.GreaterOrEqual(t, out[0].TotalSeverity, out[1].TotalSeverity)
	assert.GreaterOrEqual(t, out[1].TotalSeverity, out[2].TotalSeverity)
}

func TestDemoZipsAllResolve(t *testing.T) {
	s := newTestScorer(t)
	out := s.ScoreMany(DemoZips())
	assert.Len(t, out, len(DemoZips()))
}

func TestHaversine(t *testing.T) {
	// Miami ZIP coordinates equal the Miami reference point.
	assert.InDelta(t, 0, haversineMiles(25.7617, -80.1918, 25.7617, -80.1918), 1e-9)
	// New York to Boston is about 190 miles great circle.
	assert.InDelta(t, 190, haversineMiles(40.7128, -74.0060, 42.3601, -71.0589), 5)
}

func TestEnvironmentFromSeverity(t *testing.T) {
	s := newTestScorer(t)
	chi, err := s.Score("60601")
	require.NoError(t, err)

	env := EnvironmentFromSeverity(chi)
	assert.InDelta(t, 60, env.RustBeltSeverity, 1e-9)
	assert.InDelta(t, 90, env.StopGoTraffic, 1e-9)
	assert.Zero(t, env.TerrainDifficulty)
	assert.Zero(t, env.ThermalStress)

	// Projection always lands inside the engine's input range.
	for _, zip := range DemoZips() {
		res, err := s.Score(zip)
		require.NoError(t, err)
		e := EnvironmentFromSeverity(res)
		for _, v := range []float64{e.RustBeltSeverity, e.StopGoTraffic, e.TerrainDifficulty, e.ThermalStress} {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 100.0)
		}
	}
}

func TestTablesLoaderOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "severity_tables.yaml")
	content := []byte(`
regions:
  "73960":
    city: Texhoma
    state: OK
    lat: 36.5070
    lon: -101.7838
    pop_density: 40
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	loader := NewTablesLoader()
	require.NoError(t, loader.LoadFromFile(path))
	tables, err := loader.Tables()
	require.NoError(t, err)

	// File entries merge into the compiled-in directory; other sections
	// keep their defaults.
	assert.Contains(t, tables.Regions, "73960")
	assert.NotEmpty(t, tables.SaltBeltStates)
	assert.Len(t, tables.CoastalPoints, 12)

	s := NewScorer(tables)
	res, err := s.Score("73960")
	require.NoError(t, err)
	assert.Equal(t, 15, res.Factors.RuralRoad, "density 40 is very rural")
}

func TestTablesLoaderRejectsBadData(t *testing.T) {
	dir := t.TempDir()

	badZip := filepath.Join(dir, "badzip.yaml")
	require.NoError(t, os.WriteFile(badZip, []byte(`
regions:
  "123":
    city: Nowhere
    state: KS
    lat: 39.0
    lon: -98.0
    pop_density: 10
`), 0o644))

	loader := NewTablesLoader()
	err := loader.LoadFromFile(badZip)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "five-digit")

	badCoord := filepath.Join(dir, "badcoord.yaml")
	require.NoError(t, os.WriteFile(badCoord, []byte(`
coastal_reference_points:
  - {name: "Nowhere", lat: 123.0, lon: 0.0}
`), 0o644))
	err = loader.LoadFromFile(badCoord)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out-of-range")

	_, err = NewTablesLoader().Tables()
	require.Error(t, err, "tables must be loaded before use")
}
