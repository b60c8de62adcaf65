// Package application composes the scoring engines, geographic lead
// scoring, fleet context, and persistence into one facade. Transport
// layers (HTTP, CLI) call the Service and never touch the domain packages
// directly.
package application

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/beargallbladder/fleetapitest-sub000/internal/backend"
	"github.com/beargallbladder/fleetapitest-sub000/internal/domain/fleet"
	"github.com/beargallbladder/fleetapitest-sub000/internal/domain/risk"
	"github.com/beargallbladder/fleetapitest-sub000/internal/domain/stressor"
	"github.com/beargallbladder/fleetapitest-sub000/internal/geo"
	"github.com/beargallbladder/fleetapitest-sub000/internal/metrics"
	"github.com/beargallbladder/fleetapitest-sub000/internal/persistence"
)

// inlineThreshold is the batch size below which fleet scoring runs on the
// calling goroutine. Fan-out overhead beats the win for small batches.
const inlineThreshold = 32

// ledgerWriteTimeout bounds the detached ledger write that follows each
// scoring call.
const ledgerWriteTimeout = 5 * time.Second

// ErrLedgerDisabled is returned by history queries when no ledger is
// configured.
var ErrLedgerDisabled = fmt.Errorf("score ledger is not configured")

// VehicleReport is the scoring result enriched with fleet context.
type VehicleReport struct {
	risk.VehicleRiskResult
	Fleet  fleet.Comparison   `json:"fleet"`
	Trend  []fleet.TrendPoint `json:"trend"`
	Engine string             `json:"engine"`
}

// Options configures a Service. Every field is optional; the zero value
// yields a fully working in-memory service.
type Options struct {
	Ledger    persistence.ScoreLedger
	Recent    *persistence.RecentStore
	Metrics   *metrics.Metrics
	GeoTables *geo.Tables
	FleetSize int
	Now       func() time.Time
}

// Service is the application facade. Safe for concurrent use.
type Service struct {
	dispatcher *backend.Dispatcher
	leads      *geo.Scorer

	mu      sync.RWMutex
	weather risk.WeatherConditions

	ledger    persistence.ScoreLedger
	recent    *persistence.RecentStore
	metrics   *metrics.Metrics
	fleetSize int
	now       func() time.Time
}

// NewService selects a scoring backend and wires the facade together.
func NewService(opts Options) *Service {
	tables := geo.DefaultTables()
	if opts.GeoTables != nil {
		tables = *opts.GeoTables
	}

	fleetSize := opts.FleetSize
	if fleetSize < 1 {
		fleetSize = fleet.DefaultFleetSize
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Service{
		dispatcher: backend.NewDispatcher(),
		leads:      geo.NewScorer(tables),
		weather:    risk.DefaultWeather(),
		ledger:     opts.Ledger,
		recent:     opts.Recent,
		metrics:    opts.Metrics,
		fleetSize:  fleetSize,
		now:        now,
	}

	if s.metrics != nil {
		s.metrics.SetBackend(s.dispatcher.Accelerated())
	}

	log.Info().
		Str("engine", s.dispatcher.Name()).
		Bool("accelerated", s.dispatcher.Accelerated()).
		Bool("ledger", s.ledger != nil).
		Msg("scoring service ready")

	return s
}

// BackendName reports which engine is serving.
func (s *Service) BackendName() string { return s.dispatcher.Name() }

// Accelerated reports whether the native engine is live.
func (s *Service) Accelerated() bool { return s.dispatcher.Accelerated() }

// Weather returns the conditions applied to subsequent scoring calls.
func (s *Service) Weather() risk.WeatherConditions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weather
}

// SetWeather replaces the ambient conditions. Non-finite values are
// rejected so a bad feed cannot poison every later score.
func (s *Service) SetWeather(w risk.WeatherConditions) error {
	for _, v := range []float64{w.TemperatureF, w.HumidityPct, w.Precipitation, w.TempSwingF} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("weather conditions must be finite")
		}
	}

	s.mu.Lock()
	s.weather = w
	s.mu.Unlock()

	log.Info().
		Float64("temperature_f", w.TemperatureF).
		Float64("humidity_pct", w.HumidityPct).
		Float64("precipitation", w.Precipitation).
		Float64("temp_swing_f", w.TempSwingF).
		Msg("weather conditions updated")

	return nil
}

// ScoreVehicle scores one vehicle under the current weather and returns
// the enriched report. The ledger write happens off the request path.
func (s *Service) ScoreVehicle(ctx context.Context, in risk.VehicleRiskInput) (VehicleReport, error) {
	return s.ScoreVehicleWith(ctx, in, s.Weather())
}

// ScoreVehicleWith scores one vehicle under explicit weather conditions,
// leaving the ambient state untouched.
func (s *Service) ScoreVehicleWith(ctx context.Context, in risk.VehicleRiskInput, w risk.WeatherConditions) (VehicleReport, error) {
	if err := ctx.Err(); err != nil {
		return VehicleReport{}, err
	}

	start := time.Now()
	res := s.dispatcher.Backend().ScoreOne(in, w)
	elapsed := time.Since(start)

	if s.metrics != nil {
		s.metrics.ObserveScoring(s.dispatcher.Name(), "score", elapsed)
	}
	s.recordAsync([]risk.VehicleRiskResult{res}, elapsed, true)

	return s.report(res), nil
}

// ScoreFleet scores a batch, fanning out across CPUs for large batches.
// Reports are positional: reports[i] corresponds to ins[i].
func (s *Service) ScoreFleet(ctx context.Context, ins []risk.VehicleRiskInput) ([]VehicleReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(ins) == 0 {
		return []VehicleReport{}, nil
	}

	w := s.Weather()
	start := time.Now()

	var results []risk.VehicleRiskResult
	if len(ins) < inlineThreshold {
		results = s.dispatcher.Backend().ScoreBatch(ins, w)
	} else {
		var err error
		if results, err = s.scoreConcurrent(ctx, ins, w); err != nil {
			return nil, err
		}
	}
	elapsed := time.Since(start)

	if s.metrics != nil {
		s.metrics.ObserveScoring(s.dispatcher.Name(), "fleet", elapsed)
	}
	s.recordAsync(results, elapsed, false)

	reports := make([]VehicleReport, len(results))
	for i, res := range results {
		reports[i] = s.report(res)
	}
	return reports, nil
}

// scoreConcurrent splits the batch into contiguous chunks, one per worker,
// and writes results in place so ordering is preserved without a collector
// channel. The per-vehicle work is pure CPU and takes microseconds, so a
// chunk runs to completion once started; cancellation is honored between
// chunk starts.
func (s *Service) scoreConcurrent(ctx context.Context, ins []risk.VehicleRiskInput, w risk.WeatherConditions) ([]risk.VehicleRiskResult, error) {
	workers := runtime.NumCPU()
	if workers > len(ins) {
		workers = len(ins)
	}
	chunk := (len(ins) + workers - 1) / workers

	results := make([]risk.VehicleRiskResult, len(ins))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for lo := 0; lo < len(ins); lo += chunk {
		lo := lo // per-iteration copy; needed while the go directive is below 1.22
		hi := lo + chunk
		if hi > len(ins) {
			hi = len(ins)
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			copy(results[lo:hi], s.dispatcher.Backend().ScoreBatch(ins[lo:hi], w))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// AssessStressors evaluates environmental stressor exposure for one
// vehicle.
func (s *Service) AssessStressors(ctx context.Context, in stressor.ExposureInput) (stressor.Result, error) {
	if err := ctx.Err(); err != nil {
		return stressor.Result{}, err
	}

	start := time.Now()
	res := s.dispatcher.Backend().AssessStressors(in)

	if s.metrics != nil {
		s.metrics.ObserveScoring(s.dispatcher.Name(), "stressors", time.Since(start))
		s.metrics.RecordTier(res.Tier.Name)
	}

	return res, nil
}

// CompareToFleet places a standalone score within the synthetic fleet
// distribution. Non-positive fleet sizes use the service default.
func (s *Service) CompareToFleet(score, fleetSize int) fleet.Comparison {
	if fleetSize < 1 {
		fleetSize = s.fleetSize
	}
	return fleet.CompareToFleet(score, fleetSize)
}

// ScoreLeads ranks regions by severity, dropping unknown ZIPs.
func (s *Service) ScoreLeads(ctx context.Context, zips []string) ([]geo.RegionSeverity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	leads := s.leads.ScoreMany(zips)

	if s.metrics != nil {
		s.metrics.ObserveScoring(s.dispatcher.Name(), "leads", time.Since(start))
	}

	return leads, nil
}

// LeadForZip scores a single region.
func (s *Service) LeadForZip(zip string) (geo.RegionSeverity, error) {
	return s.leads.Score(zip)
}

// EnvironmentForZip converts a region's severity profile into the
// environmental exposure block of a scoring input.
func (s *Service) EnvironmentForZip(zip string) (risk.EnvironmentExposure, error) {
	sev, err := s.leads.Score(zip)
	if err != nil {
		return risk.EnvironmentExposure{}, err
	}
	return geo.EnvironmentFromSeverity(sev), nil
}

// VehicleHistory returns the ledger history for one vehicle, newest first.
func (s *Service) VehicleHistory(ctx context.Context, vin string, limit int) ([]persistence.ScoreRecord, error) {
	if s.ledger == nil {
		return nil, ErrLedgerDisabled
	}
	return s.ledger.ListByVIN(ctx, vin, limit)
}

// RecentScores returns the newest scored vehicles, served from the Redis
// list when available and falling back to the ledger.
func (s *Service) RecentScores(ctx context.Context, limit int) ([]persistence.ScoreRecord, error) {
	if s.recent != nil {
		recs, err := s.recent.List(ctx, int64(limit))
		if err == nil {
			return recs, nil
		}
		log.Debug().Err(err).Msg("recent-scores store unavailable, falling back to ledger")
	}
	if s.ledger == nil {
		return nil, ErrLedgerDisabled
	}
	return s.ledger.Recent(ctx, limit)
}

// report wraps an engine result with fleet context.
func (s *Service) report(res risk.VehicleRiskResult) VehicleReport {
	return VehicleReport{
		VehicleRiskResult: res,
		Fleet:             fleet.CompareToFleet(res.PriorityScore, s.fleetSize),
		Trend:             fleet.SynthesizeTrend(res.PriorityScore, s.now(), fleet.SeedFromVIN(res.VIN)),
		Engine:            s.dispatcher.Name(),
	}
}

// recordAsync persists results off the scoring path. Failures are counted
// and logged, never surfaced to the caller. Single-vehicle scores also feed
// the recent list; batch results only hit the ledger.
func (s *Service) recordAsync(results []risk.VehicleRiskResult, elapsed time.Duration, single bool) {
	if s.ledger == nil && s.recent == nil {
		return
	}

	perResult := elapsed
	if len(results) > 1 {
		perResult = elapsed / time.Duration(len(results))
	}

	recs := make([]persistence.ScoreRecord, len(results))
	createdAt := s.now().UTC()
	for i, res := range results {
		recs[i] = persistence.ScoreRecord{
			ID:               uuid.NewString(),
			VIN:              res.VIN,
			PriorityScore:    res.PriorityScore,
			Posterior:        res.Posterior,
			EnvironmentScore: res.EnvironmentScore,
			MileageBand:      res.MileageBand,
			OutlierStatus:    string(res.Cohort.WorstStatus),
			Engine:           s.dispatcher.Name(),
			LatencyMicros:    perResult.Microseconds(),
			CreatedAt:        createdAt,
		}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), ledgerWriteTimeout)
		defer cancel()

		if s.ledger != nil {
			var err error
			if len(recs) == 1 {
				err = s.ledger.Insert(ctx, recs[0])
			} else {
				err = s.ledger.InsertBatch(ctx, recs)
			}
			if err != nil {
				if s.metrics != nil {
					s.metrics.RecordLedgerWrite("dropped")
				}
				log.Warn().Err(err).Int("records", len(recs)).
					Msg("score ledger write failed")
			} else if s.metrics != nil {
				s.metrics.RecordLedgerWrite("written")
			}
		}

		if single && s.recent != nil {
			if err := s.recent.Push(ctx, recs[0]); err != nil {
				log.Debug().Err(err).Msg("recent scores push failed")
			}
		}
	}()
}
