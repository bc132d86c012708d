// Package cache implements the best-effort, revisioned Cache of
// SPEC_FULL.md §4.D: a Redis-backed KV store where every tenant+kind has a
// monotonic revision counter baked into its keys, so a single INCR
// invalidates every previously-cached entry of that kind without a scan or
// delete-by-pattern. Grounded on the connection-setup idiom of
// internal/clients/redis (ping-on-construct, env-driven addr) and on
// original_source/valkey_cache.py's revision scheme.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/ragcore/internal/config"
	"github.com/yungbote/ragcore/internal/logger"
)

// Kind namespaces a revision counter: "search", "image_search", "rag",
// "deep_research" each invalidate independently so, e.g., reindexing chunks
// doesn't need to also bump the Deep Research session cache.
type Kind string

const (
	KindSearch       Kind = "search"
	KindImageSearch  Kind = "image_search"
	KindRAG          Kind = "rag"
	KindDeepResearch Kind = "deep_research"
)

// Cacher is the narrow surface Retriever/Synthesizer/Ingestor/DeepResearchAgent
// depend on. *Cache is the only production implementation (Redis-backed);
// tests substitute an in-memory fake so the cache-hit/cache-miss branches of
// each consumer are exercisable without a reachable Redis instance.
type Cacher interface {
	Get(ctx context.Context, key string, dest any) (ok bool)
	Set(ctx context.Context, key string, val any, ttl time.Duration)
	Bump(ctx context.Context, kind Kind, userID, spaceID string) error
	Revision(ctx context.Context, kind Kind, userID, spaceID string) (int64, error)
}

type Cache struct {
	rdb     *goredis.Client
	log     *logger.Logger
	breaker *circuitBreaker
}

func New(cfg config.RedisConfig, breakerCfg config.CacheConfig, log *logger.Logger) (*Cache, error) {
	cacheLog := log.With("component", "Cache")
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cacheLog.Error("failed to ping redis", "error", err)
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	cacheLog.Info("connected to redis", "addr", cfg.Addr)

	threshold := breakerCfg.CircuitBreakerThreshold
	if threshold <= 0 {
		threshold = 5
	}
	cooldown := breakerCfg.CircuitBreakerCooldown
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	return &Cache{
		rdb:     rdb,
		log:     cacheLog,
		breaker: newCircuitBreaker(threshold, cooldown),
	}, nil
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}

func revisionKey(kind Kind, userID, spaceID string) string {
	return fmt.Sprintf("rev:%s:%s:%s", kind, userID, spaceID)
}

// Revision returns the current invalidation generation for a tenant+kind;
// a counter that does not exist yet reads as 0 and is not written.
func (c *Cache) Revision(ctx context.Context, kind Kind, userID, spaceID string) (int64, error) {
	if c.breaker.open() {
		return 0, errBreakerOpen
	}
	v, err := c.rdb.Get(ctx, revisionKey(kind, userID, spaceID)).Int64()
	if err == goredis.Nil {
		return 0, nil
	}
	if err != nil {
		c.breaker.recordFailure()
		return 0, err
	}
	c.breaker.recordSuccess()
	return v, nil
}

// Bump invalidates every cache entry of this kind for this tenant by
// incrementing its revision, matching valkey_cache.py's invalidation call
// after a write to the underlying data (ingest, reindex).
func (c *Cache) Bump(ctx context.Context, kind Kind, userID, spaceID string) error {
	if c.breaker.open() {
		return errBreakerOpen
	}
	if err := c.rdb.Incr(ctx, revisionKey(kind, userID, spaceID)).Err(); err != nil {
		c.breaker.recordFailure()
		return err
	}
	c.breaker.recordSuccess()
	return nil
}

// Get is best-effort: a circuit-open or miss both simply return ok=false so
// callers fall through to computing the value fresh. Cache failures must
// never fail a request (spec.md §4.D).
func (c *Cache) Get(ctx context.Context, key string, dest any) (ok bool) {
	if c.breaker.open() {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.breaker.recordFailure()
			c.log.Debug("cache get failed", "key", key, "error", err)
		}
		return false
	}
	c.breaker.recordSuccess()
	if err := json.Unmarshal(raw, dest); err != nil {
		c.log.Warn("cache value failed to unmarshal, treating as miss", "key", key, "error", err)
		return false
	}
	return true
}

func (c *Cache) Set(ctx context.Context, key string, val any, ttl time.Duration) {
	if c.breaker.open() {
		return
	}
	raw, err := json.Marshal(val)
	if err != nil {
		c.log.Warn("cache value failed to marshal, skipping set", "key", key, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.breaker.recordFailure()
		c.log.Debug("cache set failed", "key", key, "error", err)
		return
	}
	c.breaker.recordSuccess()
}

var errBreakerOpen = fmt.Errorf("cache: circuit open")

// circuitBreaker is a simple rolling-failure-count breaker: after
// threshold consecutive failures it opens for cooldown, then closes again
// with its failure count reset. No external breaker library is used here;
// the policy is a handful of lines and none of the retrieved pack's
// dependencies (go.mod) ship one, so the standard-library-only
// implementation is the pragmatic choice (documented in DESIGN.md).
type circuitBreaker struct {
	mu          sync.Mutex
	threshold   int
	cooldown    time.Duration
	failures    int
	openUntil   time.Time
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	return &circuitBreaker{threshold: threshold, cooldown: cooldown}
}

func (b *circuitBreaker) open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openUntil.IsZero() {
		return false
	}
	if time.Now().After(b.openUntil) {
		b.openUntil = time.Time{}
		b.failures = 0
		return false
	}
	return true
}

func (b *circuitBreaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold {
		b.openUntil = time.Now().Add(b.cooldown)
	}
}

func (b *circuitBreaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.openUntil = time.Time{}
}
