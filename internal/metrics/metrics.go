// Package metrics exposes Prometheus instrumentation for the scoring
// service: engine latency and throughput, tier assignments, cache
// efficiency, ledger health, and live feed fan-out.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
)

// cacheTypes enumerates the caches whose hits and misses roll up into the
// hit-ratio gauge.
var cacheTypes = []string{"score", "lead"}

// Metrics holds every collector the service registers.
type Metrics struct {
	ScoringDuration *prometheus.HistogramVec
	ScoresTotal     *prometheus.CounterVec
	TierTotal       *prometheus.CounterVec

	CacheHitRatio prometheus.Gauge
	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec

	LedgerWrites *prometheus.CounterVec

	RequestDuration *prometheus.HistogramVec

	BackendAccelerated prometheus.Gauge
	LiveClients        prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New builds and registers the collectors. A nil registerer uses the
// process-wide default; tests pass their own registry to stay isolated.
func New(reg prometheus.Registerer) *Metrics {
	gatherer := prometheus.Gatherer(prometheus.DefaultGatherer)
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{
		gatherer: gatherer,

		ScoringDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fleetscore_scoring_duration_seconds",
				Help:    "Duration of scoring operations in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"engine", "op"},
		),

		ScoresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleetscore_scores_total",
				Help: "Total scoring operations by engine and operation",
			},
			[]string{"engine", "op"},
		),

		TierTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleetscore_tier_assignments_total",
				Help: "Stressor assessments by assigned risk tier",
			},
			[]string{"tier"},
		),

		CacheHitRatio: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fleetscore_cache_hit_ratio",
				Help: "Current cache hit ratio (0.0 to 1.0)",
			},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleetscore_cache_hits_total",
				Help: "Total cache hits by cache type",
			},
			[]string{"cache_type"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleetscore_cache_misses_total",
				Help: "Total cache misses by cache type",
			},
			[]string{"cache_type"},
		),

		LedgerWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleetscore_ledger_writes_total",
				Help: "Score ledger write attempts by outcome",
			},
			[]string{"status"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fleetscore_http_request_duration_seconds",
				Help:    "HTTP request duration by route and status class",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"route", "status"},
		),

		BackendAccelerated: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fleetscore_backend_accelerated",
				Help: "1 when the native engine is live, 0 on the portable fallback",
			},
		),

		LiveClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fleetscore_live_clients",
				Help: "Connected live feed websocket clients",
			},
		),
	}

	reg.MustRegister(
		m.ScoringDuration,
		m.ScoresTotal,
		m.TierTotal,
		m.CacheHitRatio,
		m.CacheHits,
		m.CacheMisses,
		m.LedgerWrites,
		m.RequestDuration,
		m.BackendAccelerated,
		m.LiveClients,
	)

	return m
}

// ObserveScoring records one scoring operation.
func (m *Metrics) ObserveScoring(engine, op string, d time.Duration) {
	m.ScoringDuration.WithLabelValues(engine, op).Observe(d.Seconds())
	m.ScoresTotal.WithLabelValues(engine, op).Inc()
}

// RecordTier counts a stressor tier assignment.
func (m *Metrics) RecordTier(tier string) {
	m.TierTotal.WithLabelValues(tier).Inc()
}

// RecordCacheHit records a hit and refreshes the ratio gauge.
func (m *Metrics) RecordCacheHit(cacheType string) {
	m.CacheHits.WithLabelValues(cacheType).Inc()
	m.updateCacheHitRatio()
}

// RecordCacheMiss records a miss and refreshes the ratio gauge.
func (m *Metrics) RecordCacheMiss(cacheType string) {
	m.CacheMisses.WithLabelValues(cacheType).Inc()
	m.updateCacheHitRatio()
}

// RecordLedgerWrite counts a ledger write outcome: written, dropped, or
// rejected.
func (m *Metrics) RecordLedgerWrite(status string) {
	m.LedgerWrites.WithLabelValues(status).Inc()
	if status != "written" {
		log.Debug().Str("status", status).Msg("ledger write did not persist")
	}
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route, status string, d time.Duration) {
	m.RequestDuration.WithLabelValues(route, status).Observe(d.Seconds())
}

// SetBackend publishes which engine is serving.
func (m *Metrics) SetBackend(accelerated bool) {
	if accelerated {
		m.BackendAccelerated.Set(1)
		return
	}
	m.BackendAccelerated.Set(0)
}

// AddLiveClient and RemoveLiveClient track websocket fan-out.
func (m *Metrics) AddLiveClient()    { m.LiveClients.Inc() }
func (m *Metrics) RemoveLiveClient() { m.LiveClients.Dec() }

// updateCacheHitRatio reads the counters back through the client model and
// publishes the blended ratio.
func (m *Metrics) updateCacheHitRatio() {
	hitMetric := &io_prometheus_client.Metric{}
	missMetric := &io_prometheus_client.Metric{}

	totalHits := 0.0
	totalMisses := 0.0
	for _, cacheType := range cacheTypes {
		if hitCounter, err := m.CacheHits.GetMetricWithLabelValues(cacheType); err == nil {
			if err := hitCounter.Write(hitMetric); err == nil {
				totalHits += hitMetric.GetCounter().GetValue()
			}
		}
		if missCounter, err := m.CacheMisses.GetMetricWithLabelValues(cacheType); err == nil {
			if err := missCounter.Write(missMetric); err == nil {
				totalMisses += missMetric.GetCounter().GetValue()
			}
		}
	}

	total := totalHits + totalMisses
	if total > 0 {
		m.CacheHitRatio.Set(totalHits / total)
	}
}

// Handler serves the exposition page for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
