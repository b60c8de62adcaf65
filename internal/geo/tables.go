package geo

// LatLon is a named coastal reference coordinate.
type LatLon struct {
	Name string  `yaml:"name" json:"name"`
	Lat  float64 `yaml:"lat" json:"lat"`
	Lon  float64 `yaml:"lon" json:"lon"`
}

// RegionInfo is the demographic snapshot for one ZIP code.
type RegionInfo struct {
	City       string  `yaml:"city" json:"city"`
	State      string  `yaml:"state" json:"state"`
	Lat        float64 `yaml:"lat" json:"lat"`
	Lon        float64 `yaml:"lon" json:"lon"`
	PopDensity float64 `yaml:"pop_density" json:"pop_density"`
}

// Tables holds the geographic lookup data behind the severity heuristics.
// These are data, not calibration: the point values awarded per heuristic
// are fixed in code, while the geography they consult can be maintained in
// config/severity_tables.yaml.
type Tables struct {
	SaltBeltStates    []string              `yaml:"salt_belt_states"`
	CoastalStates     []string              `yaml:"coastal_states"`
	CoastalPoints     []LatLon              `yaml:"coastal_reference_points"`
	MountainStates    []string              `yaml:"mountain_states"`
	ElevationPrefixes map[string]float64    `yaml:"elevation_prefixes"`
	StateElevations   map[string]float64    `yaml:"state_elevations"`
	Regions           map[string]RegionInfo `yaml:"regions"`
}

// DefaultTables returns the compiled-in geography: the northern salt belt,
// both coasts plus the Gulf, twelve coastal reference cities, the mountain
// west, and a ZIP directory of the metro areas the demo covers.
func DefaultTables() Tables {
	return Tables{
		SaltBeltStates: []string{
			"CT", "DC", "DE", "IL", "IN", "IA", "KY", "ME", "MD", "MA",
			"MI", "MN", "MO", "NH", "NJ", "NY", "OH", "PA", "RI", "VT",
			"VA", "WV", "WI",
		},
		CoastalStates: []string{
			"CA", "OR", "WA", "TX", "LA", "MS", "AL", "FL", "GA", "SC",
			"NC", "VA", "MD", "DE", "NJ", "NY", "CT", "RI", "MA", "NH", "ME",
		},
		CoastalPoints: []LatLon{
			{Name: "Los Angeles", Lat: 34.0522, Lon: -118.2437},
			{Name: "San Diego", Lat: 32.7157, Lon: -117.1611},
			{Name: "San Francisco", Lat: 37.7749, Lon: -122.4194},
			{Name: "Seattle", Lat: 47.6062, Lon: -122.3321},
			{Name: "Portland", Lat: 45.5152, Lon: -122.6784},
			{Name: "Miami", Lat: 25.7617, Lon: -80.1918},
			{Name: "Tampa", Lat: 27.9506, Lon: -82.4572},
			{Name: "Houston", Lat: 29.7604, Lon: -95.3698},
			{Name: "New Orleans", Lat: 29.9511, Lon: -90.0715},
			{Name: "New York", Lat: 40.7128, Lon: -74.0060},
			{Name: "Boston", Lat: 42.3601, Lon: -71.0589},
			{Name: "Baltimore", Lat: 39.2904, Lon: -76.6122},
		},
		MountainStates: []string{
			"CO", "WV", "UT", "NV", "ID", "MT", "WA", "OR", "CA", "AZ", "NM", "WY",
		},
		ElevationPrefixes: map[string]float64{
			"800": 5280, "801": 5500, "802": 6000, "803": 7000, "804": 8000,
			"805": 5500, "840": 4300, "841": 4500, "871": 5300, "872": 6000,
			"891": 4500, "590": 3500, "591": 4000, "820": 6000, "821": 6500,
			"822": 7000, "831": 4500, "832": 5000, "833": 5500,
		},
		StateElevations: map[string]float64{
			"CO": 5500, "UT": 4500, "WY": 5500, "NM": 5000, "NV": 4000,
			"AZ": 3500, "ID": 4000, "MT": 3500, "WA": 1500, "OR": 1500,
			"CA": 1000, "WV": 1500,
		},
		Regions: map[string]RegionInfo{
			"60601": {City: "Chicago", State: "IL", Lat: 41.8819, Lon: -87.6278, PopDensity: 12000},
			"10001": {City: "New York", State: "NY", Lat: 40.7484, Lon: -73.9967, PopDensity: 27000},
			"90210": {City: "Beverly Hills", State: "CA", Lat: 34.0901, Lon: -118.4065, PopDensity: 5200},
			"80202": {City: "Denver", State: "CO", Lat: 39.7541, Lon: -104.9927, PopDensity: 4500},
			"98101": {City: "Seattle", State: "WA", Lat: 47.6097, Lon: -122.3331, PopDensity: 8500},
			"33101": {City: "Miami", State: "FL", Lat: 25.7617, Lon: -80.1918, PopDensity: 11000},
			"48201": {City: "Detroit", State: "MI", Lat: 42.3314, Lon: -83.0458, PopDensity: 5000},
			"02101": {City: "Boston", State: "MA", Lat: 42.3601, Lon: -71.0589, PopDensity: 13000},
			"75201": {City: "Dallas", State: "TX", Lat: 32.7767, Lon: -96.7970, PopDensity: 3500},
			"85001": {City: "Phoenix", State: "AZ", Lat: 33.4484, Lon: -112.0740, PopDensity: 3000},
			"55401": {City: "Minneapolis", State: "MN", Lat: 44.9778, Lon: -93.2650, PopDensity: 7000},
			"84101": {City: "Salt Lake City", State: "UT", Lat: 40.7608, Lon: -111.8910, PopDensity: 3200},
			"15201": {City: "Pittsburgh", State: "PA", Lat: 40.4406, Lon: -79.9959, PopDensity: 5500},
			"44101": {City: "Cleveland", State: "OH", Lat: 41.4993, Lon: -81.6944, PopDensity: 4800},
			"14201": {City: "Buffalo", State: "NY", Lat: 42.8864, Lon: -78.8784, PopDensity: 6500},
		},
	}
}

// DemoZips is the sample set exercised by the CLI demo: a spread of salt
// belt, coastal, altitude, and thermal profiles.
func DemoZips() []string {
	return []string{
		"60601", "10001", "80202", "98101", "33101",
		"48201", "85001", "55401", "84101", "14201",
	}
}
