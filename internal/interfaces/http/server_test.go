package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beargallbladder/fleetapitest-sub000/internal/application"
	"github.com/beargallbladder/fleetapitest-sub000/internal/cache"
	"github.com/beargallbladder/fleetapitest-sub000/internal/config"
	"github.com/beargallbladder/fleetapitest-sub000/internal/domain/fleet"
	"github.com/beargallbladder/fleetapitest-sub000/internal/domain/stressor"
	"github.com/beargallbladder/fleetapitest-sub000/internal/geo"
	httpContracts "github.com/beargallbladder/fleetapitest-sub000/internal/http"
)

func testServerConfig() config.ServerSection {
	return config.ServerSection{
		Addr:              "127.0.0.1:0",
		ReadTimeoutSecs:   5,
		WriteTimeoutSecs:  5,
		ShutdownGraceSecs: 1,
		RateLimitRPS:      1000,
		RateLimitBurst:    1000,
	}
}

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	if opts.Service == nil {
		opts.Service = application.NewService(application.Options{})
	}
	if opts.Version == "" {
		opts.Version = "test"
	}
	srv, err := NewServer(testServerConfig(), opts)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func referenceRiskBody() string {
	return `{
		"vin": "1FTEW1EP5MKE00001",
		"mileage": 75000,
		"vehicle_age_years": 4,
		"health_score": 72,
		"dtcs": {"powertrain": 2, "body": 1, "chassis": 1, "network": 0},
		"environment": {"rust_belt_severity": 30, "stop_go_traffic": 50, "terrain_difficulty": 20, "thermal_stress": 40},
		"open_recalls": 0
	}`
}

func postJSON(t *testing.T, ts *httptest.Server, path, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func getPath(t *testing.T, ts *httptest.Server, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

type riskEnvelope struct {
	Success  bool                      `json:"success"`
	Engine   string                    `json:"engine"`
	Result   application.VehicleReport `json:"result"`
	TimingMS float64                   `json:"timing_ms"`
}

type fleetEnvelope struct {
	Success bool                        `json:"success"`
	Result  httpContracts.FleetResponse `json:"result"`
}

type stressorEnvelope struct {
	Success bool            `json:"success"`
	Result  stressor.Result `json:"result"`
}

func TestRiskEndpointScoresVehicle(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, body := postJSON(t, ts, "/risk", referenceRiskBody())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var env riskEnvelope
	require.NoError(t, json.Unmarshal(body, &env))

	assert.True(t, env.Success)
	assert.NotEmpty(t, env.Engine)
	assert.Equal(t, env.Engine, env.Result.Engine)

	assert.Equal(t, 6, env.Result.PriorityScore)
	assert.InDelta(t, 0.0565, env.Result.Posterior, 5e-4)
	assert.Equal(t, "75k-100k", env.Result.MileageBand)

	assert.Equal(t, 6, env.Result.Fleet.Score)
	assert.True(t, env.Result.Fleet.Synthetic)
	assert.Len(t, env.Result.Trend, fleet.TrendWeeks)
}

func TestRiskEndpointValidation(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{
			name:     "missing vin",
			body:     `{"mileage": 1000, "vehicle_age_years": 2, "health_score": 90}`,
			wantCode: "missing_vin",
		},
		{
			name:     "missing age and year",
			body:     `{"vin": "VIN1", "mileage": 1000, "health_score": 90}`,
			wantCode: "missing_age",
		},
		{
			name:     "year out of range",
			body:     `{"vin": "VIN1", "year": 1900, "health_score": 90}`,
			wantCode: "invalid_year",
		},
		{
			name:     "negative mileage",
			body:     `{"vin": "VIN1", "vehicle_age_years": 2, "mileage": -5, "health_score": 90}`,
			wantCode: "invalid_mileage",
		},
		{
			name:     "health score out of range",
			body:     `{"vin": "VIN1", "vehicle_age_years": 2, "health_score": 150}`,
			wantCode: "invalid_health_score",
		},
		{
			name:     "negative dtc count",
			body:     `{"vin": "VIN1", "vehicle_age_years": 2, "health_score": 90, "dtcs": {"powertrain": -1}}`,
			wantCode: "invalid_dtcs",
		},
		{
			name:     "environment severity out of range",
			body:     `{"vin": "VIN1", "vehicle_age_years": 2, "health_score": 90, "environment": {"rust_belt_severity": 400}}`,
			wantCode: "invalid_environment",
		},
		{
			name:     "malformed json",
			body:     `{not json`,
			wantCode: "invalid_json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postJSON(t, ts, "/risk", tt.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var errResp httpContracts.ErrorResponse
			require.NoError(t, json.Unmarshal(body, &errResp))
			assert.Equal(t, tt.wantCode, errResp.Code)
			assert.Len(t, errResp.RequestID, 8)
		})
	}
}

func TestRiskEndpointZipPrefill(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, body := postJSON(t, ts, "/risk",
		`{"vin": "VIN-CHI", "mileage": 60000, "vehicle_age_years": 5, "health_score": 80, "zip": "60601"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env riskEnvelope
	require.NoError(t, json.Unmarshal(body, &env))
	assert.Greater(t, env.Result.EnvironmentScore, 0.0)

	resp, body = postJSON(t, ts, "/risk",
		`{"vin": "VIN-X", "mileage": 60000, "vehicle_age_years": 5, "health_score": 80, "zip": "00000"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp httpContracts.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "unknown_zip", errResp.Code)
}

func TestRiskEndpointWeatherOverride(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, body := postJSON(t, ts, "/risk", referenceRiskBody())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var baseline riskEnvelope
	require.NoError(t, json.Unmarshal(body, &baseline))

	harsh := strings.TrimSuffix(strings.TrimSpace(referenceRiskBody()), "}") +
		`, "weather": {"temperature_f": 15, "humidity_pct": 88, "precipitation": 70, "temp_swing_f": 38}}`
	resp, body = postJSON(t, ts, "/risk", harsh)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var overridden riskEnvelope
	require.NoError(t, json.Unmarshal(body, &overridden))

	assert.Greater(t, overridden.Result.Posterior, baseline.Result.Posterior)
}

func TestFleetEndpoint(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	body := `[
		{"vin": "FLEET-A", "mileage": 75000, "vehicle_age_years": 4, "health_score": 72,
		 "dtcs": {"powertrain": 2, "body": 1, "chassis": 1, "network": 0},
		 "environment": {"rust_belt_severity": 30, "stop_go_traffic": 50, "terrain_difficulty": 20, "thermal_stress": 40}},
		{"vin": "FLEET-B", "mileage": 12000, "vehicle_age_years": 1, "health_score": 96},
		{"vin": "FLEET-C", "mileage": 180000, "vehicle_age_years": 11, "health_score": 38,
		 "dtcs": {"powertrain": 4, "body": 2, "chassis": 3, "network": 1}, "open_recalls": 2}
	]`

	resp, data := postJSON(t, ts, "/fleet", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env fleetEnvelope
	require.NoError(t, json.Unmarshal(data, &env))

	assert.True(t, env.Success)
	assert.Equal(t, 3, env.Result.Count)
	require.Len(t, env.Result.Results, 3)

	a, ok := env.Result.Results["FLEET-A"]
	require.True(t, ok)
	assert.Equal(t, 6, a.PriorityScore)

	b := env.Result.Results["FLEET-B"]
	c := env.Result.Results["FLEET-C"]
	assert.Less(t, b.PriorityScore, c.PriorityScore)
}

func TestFleetEndpointValidatesEachVehicle(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	body := `[
		{"vin": "OK-1", "mileage": 10000, "vehicle_age_years": 1, "health_score": 95},
		{"mileage": 10000, "vehicle_age_years": 1, "health_score": 95}
	]`
	resp, data := postJSON(t, ts, "/fleet", body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp httpContracts.ErrorResponse
	require.NoError(t, json.Unmarshal(data, &errResp))
	assert.Equal(t, "missing_vin", errResp.Code)
	assert.Contains(t, errResp.Message, "vehicle 1")
}

func TestFleetEndpointRejectsOversizedBatch(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	// One past the /fleet batch limit.
	age := 3.0
	reqs := make([]httpContracts.RiskRequest, 5001)
	for i := range reqs {
		reqs[i] = httpContracts.RiskRequest{
			VIN:             "BULK",
			Mileage:         10000,
			VehicleAgeYears: &age,
			HealthScore:     90,
		}
	}
	payload, err := json.Marshal(reqs)
	require.NoError(t, err)

	resp, data := postJSON(t, ts, "/fleet", string(payload))
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	var errResp httpContracts.ErrorResponse
	require.NoError(t, json.Unmarshal(data, &errResp))
	assert.Equal(t, "fleet_too_large", errResp.Code)
}

func TestStressorsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, data := postJSON(t, ts, "/stressors",
		`{"vin": "STRESS-1", "days_over_95f": 40, "days_below_20f": 5, "short_trip_share": 0.5, "elevation_ft": 5200, "salt_exposure_days": 60}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env stressorEnvelope
	require.NoError(t, json.Unmarshal(data, &env))

	assert.True(t, env.Success)
	assert.Greater(t, env.Result.Probability, stressor.BaseRate)
	assert.LessOrEqual(t, env.Result.Probability, stressor.MaxProbability)
	assert.NotEmpty(t, env.Result.PrimaryStressor)
	assert.NotEmpty(t, env.Result.Tier.Name)

	resp, data = postJSON(t, ts, "/stressors",
		`{"vin": "STRESS-2", "short_trip_share": 1.5}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp httpContracts.ErrorResponse
	require.NoError(t, json.Unmarshal(data, &errResp))
	assert.Equal(t, "invalid_exposure", errResp.Code)
}

func TestCompareEndpoint(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, data := getPath(t, ts, "/compare?score=6")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env struct {
		Result fleet.Comparison `json:"result"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, 6, env.Result.Score)
	assert.Equal(t, fleet.DefaultFleetSize, env.Result.FleetSize)
	assert.True(t, env.Result.Synthetic)

	resp, data = getPath(t, ts, "/compare?score=6&fleet=500")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, 500, env.Result.FleetSize)

	resp, _ = getPath(t, ts, "/compare")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = getPath(t, ts, "/compare?score=abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLeadsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, data := getPath(t, ts, "/leads?zips=60601,85001,99999")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env struct {
		Result []geo.RegionSeverity `json:"result"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	require.Len(t, env.Result, 2)
	assert.GreaterOrEqual(t, env.Result[0].TotalSeverity, env.Result[1].TotalSeverity)

	resp, data = getPath(t, ts, "/leads?demo=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Len(t, env.Result, len(geo.DemoZips()))

	resp, data = getPath(t, ts, "/leads")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp httpContracts.ErrorResponse
	require.NoError(t, json.Unmarshal(data, &errResp))
	assert.Equal(t, "missing_zips", errResp.Code)
}

func TestLeadEndpointSingleZip(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, data := getPath(t, ts, "/leads/60601")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env struct {
		Result geo.RegionSeverity `json:"result"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "60601", env.Result.Zip)
	assert.Equal(t, "Chicago", env.Result.City)

	resp, data = getPath(t, ts, "/leads/00000")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var errResp httpContracts.ErrorResponse
	require.NoError(t, json.Unmarshal(data, &errResp))
	assert.Equal(t, "unknown_zip", errResp.Code)
}

func TestWeatherEndpoints(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, data := getPath(t, ts, "/weather")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env struct {
		Result struct {
			TemperatureF float64 `json:"temperature_f"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, 70.0, env.Result.TemperatureF)

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/weather",
		strings.NewReader(`{"temperature_f": 10, "humidity_pct": 85, "precipitation": 60, "temp_swing_f": 35}`))
	require.NoError(t, err)
	putResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	putResp.Body.Close()
	require.Equal(t, http.StatusOK, putResp.StatusCode)

	resp, data = getPath(t, ts, "/weather")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, 10.0, env.Result.TemperatureF)
}

func TestHistoryEndpointsWithoutLedger(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	for _, path := range []string{"/vehicles/1FTEW1EP5MKE00001/history", "/recent"} {
		resp, data := getPath(t, ts, path)
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)

		var errResp httpContracts.ErrorResponse
		require.NoError(t, json.Unmarshal(data, &errResp))
		assert.Equal(t, "ledger_disabled", errResp.Code, path)
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, data := getPath(t, ts, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var health httpContracts.HealthResponse
	require.NoError(t, json.Unmarshal(data, &health))

	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "test", health.Version)
	assert.NotEmpty(t, health.Engine.Name)
	assert.False(t, health.Ledger.Enabled)
	assert.Equal(t, 0, health.LiveFeed.Clients)
}

func TestNotFoundRoute(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, data := getPath(t, ts, "/nope")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var errResp httpContracts.ErrorResponse
	require.NoError(t, json.Unmarshal(data, &errResp))
	assert.Equal(t, "endpoint_not_found", errResp.Code)
	assert.Len(t, resp.Header.Get("X-Request-ID"), 8)
}

func TestRateLimitExceeded(t *testing.T) {
	cfg := testServerConfig()
	cfg.RateLimitRPS = 1
	cfg.RateLimitBurst = 1

	srv, err := NewServer(cfg, Options{Service: application.NewService(application.Options{})})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, _ := getPath(t, ts, "/weather")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data := getPath(t, ts, "/weather")
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))

	var errResp httpContracts.ErrorResponse
	require.NoError(t, json.Unmarshal(data, &errResp))
	assert.Equal(t, "rate_limited", errResp.Code)

	// Health stays reachable for probes even when the API is throttled.
	resp, _ = getPath(t, ts, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

type countingCache struct {
	mu     sync.Mutex
	inner  cache.Cache
	hits   int
	misses int
}

func (c *countingCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.inner.Get(key)
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return b, ok
}

func (c *countingCache) Set(key string, val []byte, ttl time.Duration) {
	c.inner.Set(key, val, ttl)
}

func (c *countingCache) counts() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func TestRiskResponseCached(t *testing.T) {
	cc := &countingCache{inner: cache.NewMemory()}
	_, ts := newTestServer(t, Options{Cache: cc, CacheTTL: time.Minute})

	resp, first := postJSON(t, ts, "/risk", referenceRiskBody())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, second := postJSON(t, ts, "/risk", referenceRiskBody())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.JSONEq(t, string(first), string(second))

	hits, misses := cc.counts()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}

func TestCORSPreflight(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/risk", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}
