package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Schema creates the ledger table and its query indexes. Safe to run on
// every startup.
const Schema = `
CREATE TABLE IF NOT EXISTS score_ledger (
	id                UUID PRIMARY KEY,
	vin               TEXT NOT NULL,
	priority_score    INTEGER NOT NULL,
	posterior         DOUBLE PRECISION NOT NULL,
	environment_score DOUBLE PRECISION NOT NULL,
	mileage_band      TEXT NOT NULL,
	outlier_status    TEXT NOT NULL,
	engine            TEXT NOT NULL,
	latency_us        BIGINT NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_score_ledger_vin ON score_ledger (vin, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_score_ledger_created ON score_ledger (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_score_ledger_score ON score_ledger (priority_score DESC, created_at DESC);`

// EnsureSchema applies the ledger schema.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply ledger schema: %w", err)
	}
	return nil
}

// scoreRepo implements ScoreLedger for PostgreSQL.
type scoreRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewScoreRepo creates a PostgreSQL score ledger.
func NewScoreRepo(db *sqlx.DB, timeout time.Duration) ScoreLedger {
	return &scoreRepo{
		db:      db,
		timeout: timeout,
	}
}

const insertQuery = `
	INSERT INTO score_ledger
	(id, vin, priority_score, posterior, environment_score, mileage_band,
	 outlier_status, engine, latency_us, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO NOTHING`

const selectColumns = `
	SELECT id, vin, priority_score, posterior, environment_score, mileage_band,
	       outlier_status, engine, latency_us, created_at
	FROM score_ledger`

// Insert appends one score record. Replays of the same ID are no-ops.
func (r *scoreRepo) Insert(ctx context.Context, rec ScoreRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := validateRecord(rec); err != nil {
		return fmt.Errorf("invalid score record: %w", err)
	}

	_, err := r.db.ExecContext(ctx, insertQuery,
		rec.ID, rec.VIN, rec.PriorityScore, rec.Posterior,
		rec.EnvironmentScore, rec.MileageBand, rec.OutlierStatus,
		rec.Engine, rec.LatencyMicros, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert score record: %w", err)
	}

	return nil
}

// InsertBatch appends multiple records inside one transaction.
func (r *scoreRepo) InsertBatch(ctx context.Context, recs []ScoreRecord) error {
	if len(recs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	for i, rec := range recs {
		if err := validateRecord(rec); err != nil {
			return fmt.Errorf("invalid score record at index %d: %w", i, err)
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range recs {
		_, err := tx.ExecContext(ctx, insertQuery,
			rec.ID, rec.VIN, rec.PriorityScore, rec.Posterior,
			rec.EnvironmentScore, rec.MileageBand, rec.OutlierStatus,
			rec.Engine, rec.LatencyMicros, rec.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert batch record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	return nil
}

// ListByVIN retrieves score history for one vehicle, newest first.
func (r *scoreRepo) ListByVIN(ctx context.Context, vin string, limit int) ([]ScoreRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if vin == "" {
		return nil, fmt.Errorf("vin is required")
	}

	query := selectColumns + `
	WHERE vin = $1
	ORDER BY created_at DESC
	LIMIT $2`

	rows, err := r.db.QueryxContext(ctx, query, vin, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores by vin: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Recent returns the newest records across all vehicles.
func (r *scoreRepo) Recent(ctx context.Context, limit int) ([]ScoreRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := selectColumns + `
	ORDER BY created_at DESC
	LIMIT $1`

	rows, err := r.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent scores: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// HighRisk retrieves records at or above a priority score threshold.
func (r *scoreRepo) HighRisk(ctx context.Context, minScore int, tr TimeRange, limit int) ([]ScoreRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := selectColumns + `
	WHERE priority_score >= $1 AND created_at >= $2 AND created_at <= $3
	ORDER BY priority_score DESC, created_at DESC
	LIMIT $4`

	rows, err := r.db.QueryxContext(ctx, query, minScore, tr.From, tr.To, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query high risk scores: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// CountByEngine returns record counts grouped by scoring engine.
func (r *scoreRepo) CountByEngine(ctx context.Context, tr TimeRange) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
	SELECT engine, COUNT(*)
	FROM score_ledger
	WHERE created_at >= $1 AND created_at <= $2
	GROUP BY engine
	ORDER BY engine`

	rows, err := r.db.QueryxContext(ctx, query, tr.From, tr.To)
	if err != nil {
		return nil, fmt.Errorf("failed to query engine counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var engine string
		var count int64
		if err := rows.Scan(&engine, &count); err != nil {
			return nil, fmt.Errorf("failed to scan engine count: %w", err)
		}
		counts[engine] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating engine counts: %w", err)
	}

	return counts, nil
}

// ScoreDistribution returns a histogram of priority scores in ten-point
// buckets. A perfect 100 lands in the top bucket.
func (r *scoreRepo) ScoreDistribution(ctx context.Context, tr TimeRange) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
	SELECT LEAST(priority_score / 10, 9) AS bucket, COUNT(*)
	FROM score_ledger
	WHERE created_at >= $1 AND created_at <= $2
	GROUP BY bucket
	ORDER BY bucket`

	rows, err := r.db.QueryxContext(ctx, query, tr.From, tr.To)
	if err != nil {
		return nil, fmt.Errorf("failed to query score distribution: %w", err)
	}
	defer rows.Close()

	dist := make(map[string]int64)
	for rows.Next() {
		var bucket int
		var count int64
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, fmt.Errorf("failed to scan distribution bucket: %w", err)
		}
		dist[bucketLabel(bucket)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating distribution: %w", err)
	}

	return dist, nil
}

// Helper methods

func scanRecords(rows *sqlx.Rows) ([]ScoreRecord, error) {
	var recs []ScoreRecord

	for rows.Next() {
		var rec ScoreRecord
		err := rows.Scan(
			&rec.ID, &rec.VIN, &rec.PriorityScore, &rec.Posterior,
			&rec.EnvironmentScore, &rec.MileageBand, &rec.OutlierStatus,
			&rec.Engine, &rec.LatencyMicros, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan score record: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return recs, nil
}

func bucketLabel(bucket int) string {
	if bucket >= 9 {
		return "90-100"
	}
	return fmt.Sprintf("%d-%d", bucket*10, bucket*10+9)
}

// isValidEngine validates the scoring engine name.
func isValidEngine(engine string) bool {
	validEngines := map[string]bool{
		"native":   true,
		"portable": true,
	}
	return validEngines[engine]
}

// validateRecord enforces ledger invariants before any write.
func validateRecord(rec ScoreRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("record ID is required")
	}
	if rec.VIN == "" {
		return fmt.Errorf("vin is required")
	}
	if rec.PriorityScore < 0 || rec.PriorityScore > 100 {
		return fmt.Errorf("priority score out of range: %d", rec.PriorityScore)
	}
	if rec.Posterior < 0 || rec.Posterior > 1 {
		return fmt.Errorf("posterior out of range: %f", rec.Posterior)
	}
	if !isValidEngine(rec.Engine) {
		return fmt.Errorf("invalid engine: %s", rec.Engine)
	}
	return nil
}
