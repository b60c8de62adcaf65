// Package cache provides a small response cache for idempotent scoring
// requests. It runs in-memory by default and switches to Redis when
// REDIS_ADDR is set, so single-node and clustered deployments share one
// code path.
package cache

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// maxMemoryEntries bounds the in-memory store so a scan over a large
// fleet cannot grow it without limit.
const maxMemoryEntries = 4096

// Cache stores serialized responses keyed by request fingerprint.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, val []byte, ttl time.Duration)
}

// Key joins fingerprint parts into a namespaced cache key.
func Key(parts ...string) string {
	return "fleetscore:" + strings.Join(parts, ":")
}

type memory struct {
	mu sync.RWMutex
	m  map[string]entry
}

type entry struct {
	b   []byte
	exp time.Time
}

// NewMemory returns an in-process cache.
func NewMemory() Cache { return &memory{m: make(map[string]entry)} }

func (c *memory) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.b, true
}

func (c *memory) Set(key string, val []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.m) >= maxMemoryEntries {
		c.evictLocked()
	}

	e := entry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.m[key] = e
}

// evictLocked drops expired entries first, then arbitrary ones until a
// quarter of the capacity is free. Callers hold the write lock.
func (c *memory) evictLocked() {
	now := time.Now()
	for k, e := range c.m {
		if !e.exp.IsZero() && now.After(e.exp) {
			delete(c.m, k)
		}
	}
	target := maxMemoryEntries * 3 / 4
	for k := range c.m {
		if len(c.m) <= target {
			break
		}
		delete(c.m, k)
	}
}

// redisCache adapts a Redis client to the Cache interface. Lookups are
// bounded so a slow Redis degrades to misses instead of blocking requests.
type redisCache struct{ r *redis.Client }

// NewAuto selects Redis when REDIS_ADDR is set, otherwise memory.
func NewAuto() Cache {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return &redisCache{r: redis.NewClient(&redis.Options{Addr: addr})}
	}
	return NewMemory()
}

func (r *redisCache) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	v, err := r.r.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return v, true
}

func (r *redisCache) Set(key string, val []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_ = r.r.Set(ctx, key, val, ttl).Err()
}
