// Package persistence records scoring outcomes: a Postgres ledger for the
// durable history and a Redis list holding the most recent results for
// warm-starting dashboards and the live feed.
package persistence

import (
	"context"
	"time"
)

// TimeRange bounds a ledger query window.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ScoreRecord is one scored vehicle as written to the ledger.
type ScoreRecord struct {
	ID               string    `json:"id" db:"id"`
	VIN              string    `json:"vin" db:"vin"`
	PriorityScore    int       `json:"priority_score" db:"priority_score"`
	Posterior        float64   `json:"posterior" db:"posterior"`
	EnvironmentScore float64   `json:"environment_score" db:"environment_score"`
	MileageBand      string    `json:"mileage_band" db:"mileage_band"`
	OutlierStatus    string    `json:"outlier_status" db:"outlier_status"`
	Engine           string    `json:"engine" db:"engine"`
	LatencyMicros    int64     `json:"latency_us" db:"latency_us"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// ScoreLedger provides durable score history.
type ScoreLedger interface {
	// Insert appends one score record. Inserts are idempotent on ID.
	Insert(ctx context.Context, rec ScoreRecord) error

	// InsertBatch appends multiple records atomically.
	InsertBatch(ctx context.Context, recs []ScoreRecord) error

	// ListByVIN retrieves score history for one vehicle, newest first.
	ListByVIN(ctx context.Context, vin string, limit int) ([]ScoreRecord, error)

	// Recent returns the newest records across all vehicles.
	Recent(ctx context.Context, limit int) ([]ScoreRecord, error)

	// HighRisk retrieves records at or above a priority score threshold.
	HighRisk(ctx context.Context, minScore int, tr TimeRange, limit int) ([]ScoreRecord, error)

	// CountByEngine returns record counts grouped by scoring engine.
	CountByEngine(ctx context.Context, tr TimeRange) (map[string]int64, error)

	// ScoreDistribution returns a histogram of priority scores in
	// ten-point buckets ("0-9" through "90-100").
	ScoreDistribution(ctx context.Context, tr TimeRange) (map[string]int64, error)
}

// HealthCheck reports ledger connectivity and pool state.
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// LedgerHealth provides health monitoring for the persistence layer.
type LedgerHealth interface {
	// Health returns current ledger health status.
	Health(ctx context.Context) HealthCheck

	// Ping tests basic connectivity to the database.
	Ping(ctx context.Context) error

	// Stats returns connection pool statistics.
	Stats(ctx context.Context) map[string]interface{}
}
