package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	recentKey = "fleetscore:recent"

	// DefaultRecentMax caps how many recent results the Redis list holds.
	DefaultRecentMax = 100
)

// RecentStore keeps the newest scored vehicles in a capped Redis list so
// dashboards and the live feed can warm-start without a ledger query.
type RecentStore struct {
	client *redis.Client
	key    string
	max    int64
}

// NewRecentStore creates a recent-scores store on an existing client.
func NewRecentStore(client *redis.Client) *RecentStore {
	return &RecentStore{
		client: client,
		key:    recentKey,
		max:    DefaultRecentMax,
	}
}

// Push prepends a record and trims the list to its cap.
func (s *RecentStore) Push(ctx context.Context, rec ScoreRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal score record: %w", err)
	}

	if err := s.client.LPush(ctx, s.key, data).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	if err := s.client.LTrim(ctx, s.key, 0, s.max-1).Err(); err != nil {
		return fmt.Errorf("redis ltrim: %w", err)
	}

	return nil
}

// List returns up to limit records, newest first.
func (s *RecentStore) List(ctx context.Context, limit int64) ([]ScoreRecord, error) {
	if limit <= 0 || limit > s.max {
		limit = s.max
	}

	vals, err := s.client.LRange(ctx, s.key, 0, limit-1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis lrange: %w", err)
	}

	recs := make([]ScoreRecord, 0, len(vals))
	for _, v := range vals {
		var rec ScoreRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal score record: %w", err)
		}
		recs = append(recs, rec)
	}

	return recs, nil
}

// Len reports how many records the list currently holds.
func (s *RecentStore) Len(ctx context.Context) (int64, error) {
	n, err := s.client.LLen(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis llen: %w", err)
	}
	return n, nil
}

// Close releases the Redis connection.
func (s *RecentStore) Close() error {
	return s.client.Close()
}
