package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"candlechart/internal/logger"
	"candlechart/internal/model"
)

// cachedSeries is the stored form of a series.
type cachedSeries struct {
	Ticker   string         `json:"ticker"`
	Interval model.Interval `json:"interval"`
	Bars     []model.Bar    `json:"bars"`
}

func encodeSeries(s *model.BarSeries) ([]byte, error) {
	return json.Marshal(cachedSeries{Ticker: s.Ticker(), Interval: s.Interval(), Bars: s.Bars()})
}

// CachingProvider decorates a provider with a Redis read-through cache.
// Every cache hit still builds a new series, so identity-keyed geometry
// caches treat it as a fresh load.
type CachingProvider struct {
	inner     model.Provider
	rdb       *goredis.Client
	cb        *CircuitBreaker
	ttl       time.Duration
	namespace string

	// OnHit and OnMiss, when set, count cache outcomes.
	OnHit  func()
	OnMiss func()
}

// NewCachingProvider wraps inner. A nil rdb disables caching. ttl <= 0
// defaults to 5 minutes, an empty namespace to "series".
func NewCachingProvider(rdb *goredis.Client, cb *CircuitBreaker, ttl time.Duration, inner model.Provider, namespace string) *CachingProvider {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if namespace == "" {
		namespace = "series"
	}
	if cb == nil {
		cb = NewCircuitBreaker(5, 10*time.Second)
	}
	return &CachingProvider{inner: inner, rdb: rdb, cb: cb, ttl: ttl, namespace: namespace}
}

// Fetch serves req from the cache, falling back to the inner provider and
// storing its result. Redis failures are logged and bypassed.
func (c *CachingProvider) Fetch(ctx context.Context, req model.FetchRequest) (*model.BarSeries, error) {
	if c.rdb == nil {
		return c.inner.Fetch(ctx, req)
	}
	log := logger.FromContext(ctx)
	key := c.cacheKey(req)

	// 1) Check cache
	var raw []byte
	err := c.cb.ExecuteIgnoring(isNil, func() error {
		var err error
		raw, err = c.rdb.Get(ctx, key).Bytes()
		return err
	})
	switch {
	case err == nil && len(raw) > 0:
		s, derr := decode(raw)
		if derr == nil {
			c.hit()
			return s, nil
		}
		log.Warn("dropping corrupt cache entry", "key", key, "error", derr)
		_ = c.cb.Execute(func() error { return c.rdb.Del(ctx, key).Err() })
	case err != nil && !isNil(err):
		log.Warn("cache read bypassed", "key", key, "error", err)
	}
	c.miss()

	// 2) Fallback to the inner provider
	s, err := c.inner.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if s.Empty() {
		return s, nil
	}

	// 3) Store in cache (best effort)
	if b, err := encodeSeries(s); err == nil {
		if err := c.cb.Execute(func() error { return c.rdb.Set(ctx, key, b, c.ttl).Err() }); err != nil {
			log.Warn("cache write skipped", "key", key, "error", err)
		}
	}
	return s, nil
}

// Invalidate deletes every cached entry for ticker.
func (c *CachingProvider) Invalidate(ctx context.Context, ticker string) (int, error) {
	if c.rdb == nil {
		return 0, nil
	}
	pattern := fmt.Sprintf("%s:%s:*", c.namespace, safe(strings.ToUpper(strings.TrimSpace(ticker))))
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return removed, err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return removed, err
			}
			removed += len(keys)
		}
		cursor = cur
		if cursor == 0 {
			return removed, nil
		}
	}
}

func (c *CachingProvider) cacheKey(req model.FetchRequest) string {
	return fmt.Sprintf("%s:%s:%s:%s", c.namespace, safe(req.Ticker), safe(string(req.Period)), safe(string(req.Interval)))
}

func (c *CachingProvider) hit() {
	if c.OnHit != nil {
		c.OnHit()
	}
}

func (c *CachingProvider) miss() {
	if c.OnMiss != nil {
		c.OnMiss()
	}
}

func decode(raw []byte) (*model.BarSeries, error) {
	var cs cachedSeries
	if err := json.Unmarshal(raw, &cs); err != nil {
		return nil, err
	}
	return model.NewBarSeries(cs.Ticker, cs.Interval, cs.Bars)
}

func isNil(err error) bool { return errors.Is(err, goredis.Nil) }

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
