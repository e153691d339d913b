// Package cache stores search results in Redis, keyed by search mode,
// normalized query terms, limit and BM25 parameters. Concurrent misses for the
// same key are collapsed with singleflight, and a circuit breaker bypasses
// Redis while it is failing.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/resilience"
)

const (
	keyPrefix = "search:"

	// callTimeout bounds every Redis round trip.
	callTimeout = 100 * time.Millisecond
)

// Backend is the subset of pkg/redis.Client the cache uses.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	backend Backend
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
	errors  atomic.Int64
}

// Stats are the counters reported by the cache stats endpoint.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hit_rate"`
	Circuit string  `json:"circuit"`
}

// New returns a cache over backend. m may be nil.
func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	cbCfg := resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
	if m != nil {
		cbCfg.OnStateChange = func(name string, from, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("redis-cache", cbCfg),
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Key identifies one search. Terms are used in order because postings-union
// output depends on term order.
func Key(mode string, terms []string, limit int, p ranker.Params) string {
	var b strings.Builder
	b.WriteString(mode)
	b.WriteString("|")
	b.WriteString(strings.Join(terms, ","))
	b.WriteString("|limit=")
	b.WriteString(strconv.Itoa(limit))
	if mode == executor.ModeBM25 {
		fmt.Fprintf(&b, "|k1=%g|b=%g", p.K1, p.B)
	}
	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

func (c *QueryCache) Get(ctx context.Context, key string) (*executor.SearchResult, bool) {
	var data []byte
	err := c.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, callTimeout, "cache get", func(ctx context.Context) error {
			var err error
			data, err = c.backend.Get(ctx, key)
			if errors.Is(err, pkgredis.ErrNotFound) {
				return nil
			}
			return err
		})
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
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, key string, result *executor.SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, callTimeout, "cache set", func(ctx context.Context) error {
			return c.backend.Set(ctx, key, data, c.ttl)
		})
	})
	if err != nil {
		c.recordError("set", key, err)
	}
}

// GetOrCompute returns the cached result for key or runs compute once per key
// across concurrent callers and caches its result. The bool reports a cache
// hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key string,
	compute func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

// Invalidate drops every cached search. It bypasses the circuit breaker so a
// reload always attempts to clear stale results.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() Stats {
	s := Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Errors:  c.errors.Load(),
		Circuit: c.breaker.GetState().String(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *QueryCache) recordError(op, key string, err error) {
	c.errors.Add(1)
	if errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Debug("cache bypassed", "op", op, "key", key)
		return
	}
	c.logger.Warn("cache call failed", "op", op, "key", key, "error", err)
}
