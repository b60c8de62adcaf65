package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// breakerLedger shields the database behind a circuit breaker so a sick
// Postgres cannot stall the scoring path. Writes fail fast while the
// breaker is open; scoring itself never depends on the ledger.
type breakerLedger struct {
	inner ScoreLedger
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerLedger wraps a ledger with circuit breaking.
func NewBreakerLedger(inner ScoreLedger) ScoreLedger {
	st := gobreaker.Settings{Name: "score-ledger"}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn().
			Str("breaker", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("score ledger breaker state change")
	}

	return &breakerLedger{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(st),
	}
}

// IsUnavailable reports whether an error means the breaker rejected the
// call without reaching the database.
func IsUnavailable(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (b *breakerLedger) Insert(ctx context.Context, rec ScoreRecord) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.Insert(ctx, rec)
	})
	return err
}

func (b *breakerLedger) InsertBatch(ctx context.Context, recs []ScoreRecord) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.InsertBatch(ctx, recs)
	})
	return err
}

func (b *breakerLedger) ListByVIN(ctx context.Context, vin string, limit int) ([]ScoreRecord, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.ListByVIN(ctx, vin, limit)
	})
	if err != nil {
		return nil, err
	}
	return res.([]ScoreRecord), nil
}

func (b *breakerLedger) Recent(ctx context.Context, limit int) ([]ScoreRecord, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Recent(ctx, limit)
	})
	if err != nil {
		return nil, err
	}
	return res.([]ScoreRecord), nil
}

func (b *breakerLedger) HighRisk(ctx context.Context, minScore int, tr TimeRange, limit int) ([]ScoreRecord, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.HighRisk(ctx, minScore, tr, limit)
	})
	if err != nil {
		return nil, err
	}
	return res.([]ScoreRecord), nil
}

func (b *breakerLedger) CountByEngine(ctx context.Context, tr TimeRange) (map[string]int64, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.CountByEngine(ctx, tr)
	})
	if err != nil {
		return nil, err
	}
	return res.(map[string]int64), nil
}

func (b *breakerLedger) ScoreDistribution(ctx context.Context, tr TimeRange) (map[string]int64, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.ScoreDistribution(ctx, tr)
	})
	if err != nil {
		return nil, err
	}
	return res.(map[string]int64), nil
}
