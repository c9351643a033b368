package recommend

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Rajat083/Internship-Recommender/internal/textnorm"
	"github.com/Rajat083/Internship-Recommender/pkg/metrics"
	pkgredis "github.com/Rajat083/Internship-Recommender/pkg/redis"
	"github.com/Rajat083/Internship-Recommender/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "recommend:"

// Backend is the key-value store behind the Cache. *pkgredis.Client
// implements it.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Cache stores recommendation lists by normalized query text, top_k and
// index generation. Backend calls go through a circuit breaker; when it is
// open every lookup is a miss and results are computed directly.
type Cache struct {
	backend Backend
	ttl     time.Duration
	cb      *resilience.CircuitBreaker
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewCache creates a Cache. cb and m may be nil.
func NewCache(backend Backend, ttl time.Duration, cb *resilience.CircuitBreaker, m *metrics.Metrics) *Cache {
	return &Cache{
		backend: backend,
		ttl:     ttl,
		cb:      cb,
		metrics: m,
		logger:  slog.Default().With("component", "recommendation-cache"),
	}
}

func (c *Cache) call(fn func() error) error {
	if c.cb == nil {
		return fn()
	}
	return c.cb.Execute(fn)
}

func (c *Cache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *Cache) Get(ctx context.Context, key string) ([]Recommendation, bool) {
	var data []byte
	err := c.call(func() error {
		var err error
		data, err = c.backend.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return resilience.Permanent(err)
		}
		return err
	})
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var recs []Recommendation
	if err := json.Unmarshal(data, &recs); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return recs, true
}

func (c *Cache) Set(ctx context.Context, key string, recs []Recommendation) {
	data, err := json.Marshal(recs)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.call(func() error { return c.backend.Set(ctx, key, data, c.ttl) }); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached list for the query or computes and
// stores it. Concurrent misses for the same key share one computation. The
// boolean reports a cache hit.
func (c *Cache) GetOrCompute(
	ctx context.Context,
	text string,
	topK int,
	generation uint64,
	computeFn func() ([]Recommendation, error),
) ([]Recommendation, bool, error) {
	key := BuildKey(text, topK, generation)
	if recs, ok := c.Get(ctx, key); ok {
		return recs, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		recs, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, recs)
		return recs, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]Recommendation), false, nil
}

// Invalidate deletes every cached recommendation list.
func (c *Cache) Invalidate(ctx context.Context) error {
	var deleted int64
	err := c.call(func() error {
		var err error
		deleted, err = c.backend.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BuildKey derives the cache key for a query. Texts that tokenize to the
// same term sequence share a key.
func BuildKey(text string, topK int, generation uint64) string {
	terms := textnorm.Tokenize(textnorm.Normalize(text))
	raw := fmt.Sprintf("%s|k=%d|gen=%d", strings.Join(terms, " "), topK, generation)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
