// Package cache stores recommendation responses in Redis. Keys include the
// index generation, so a rebuild makes every older entry unreachable
// without an explicit flush; stale entries then age out through their TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/content-recommender/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "recommend:"

// Store is the subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Stats reports cache effectiveness since start.
type Stats struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Errors  int64  `json:"errors"`
	Breaker string `json:"breaker"`
	HitRate string `json:"hit_rate"`
}

// QueryCache fronts query computation with Redis. Redis failures never fail
// a query: they count as misses, and repeated failures open a circuit
// breaker that bypasses Redis until it recovers.
type QueryCache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	failed atomic.Int64
}

// New creates a QueryCache. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("redis-cache", resilience.BreakerConfig{FailureThreshold: 5, ResetTimeout: 10 * time.Second}),
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached recommendation for query and topN at generation.
func (c *QueryCache) Get(ctx context.Context, generation uint64, query string, topN int) (*engine.Recommendation, bool) {
	key := BuildKey(generation, query, topN)
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		return err
	})
	if err != nil {
		c.recordError("get", key, err)
		c.miss()
		return nil, false
	}
	if data == nil {
		c.miss()
		return nil, false
	}
	var rec engine.Recommendation
	if err := json.Unmarshal(data, &rec); err != nil {
		c.logger.Error("cache entry undecodable", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	return &rec, true
}

// Set stores rec under the key of its own generation.
func (c *QueryCache) Set(ctx context.Context, query string, topN int, rec *engine.Recommendation) {
	key := BuildKey(rec.Generation, query, topN)
	data, err := json.Marshal(rec)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	}); err != nil {
		c.recordError("set", key, err)
	}
}

// GetOrCompute returns the cached recommendation or computes, caches and
// returns it. Concurrent identical requests share a single computation. The
// boolean reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	generation uint64,
	query string,
	topN int,
	compute func() (*engine.Recommendation, error),
) (*engine.Recommendation, bool, error) {
	if rec, ok := c.Get(ctx, generation, query, topN); ok {
		return rec, true, nil
	}
	key := BuildKey(generation, query, topN)
	val, err, _ := c.group.Do(key, func() (any, error) {
		rec, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, query, topN, rec)
		return rec, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*engine.Recommendation), false, nil
}

// Invalidate deletes every cached recommendation.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats returns hit, miss and error counts.
func (c *QueryCache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total) * 100
	}
	return Stats{
		Hits:    hits,
		Misses:  misses,
		Errors:  c.failed.Load(),
		Breaker: c.breaker.State().String(),
		HitRate: fmt.Sprintf("%.1f%%", ratio),
	}
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *QueryCache) recordError(op, key string, err error) {
	c.failed.Add(1)
	if errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Debug("cache bypassed", "op", op, "key", key)
		return
	}
	c.logger.Warn("cache "+op+" failed", "key", key, "error", err)
}

// BuildKey derives the Redis key for a query. Queries differing only in case
// or whitespace share a key.
func BuildKey(generation uint64, query string, topN int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	raw := fmt.Sprintf("gen=%d|n=%d|q=%s", generation, topN, normalized)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%d:%x", keyPrefix, generation, hash[:16])
}
