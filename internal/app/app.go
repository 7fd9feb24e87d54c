// Package app assembles the data stack shared by the chart binaries:
// provider chain, storage, cache and the per-chart session factory.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"candlechart/config"
	"candlechart/internal/chart"
	"candlechart/internal/indicator"
	"candlechart/internal/metrics"
	"candlechart/internal/model"
	"candlechart/internal/provider/httpfeed"
	"candlechart/internal/session"
	redisstore "candlechart/internal/store/redis"
	sqlitestore "candlechart/internal/store/sqlite"
)

// Stack is the assembled provider chain:
//
//	feed -> recorder (tees into SQLite) -> Redis cache
//
// With no feed configured SQLite serves reads directly.
type Stack struct {
	Provider model.Provider
	// Cache is nil when Redis is disabled or unreachable.
	Cache  *redisstore.CachingProvider
	Redis  *goredis.Client
	Writer *sqlitestore.Writer

	reader  model.BarReader
	record  chan *model.BarSeries
	metrics *metrics.Metrics
	health  *metrics.HealthStatus
}

// Build opens storage and connects to the configured sources. A Redis that
// cannot be reached is logged and skipped; SQLite failures are fatal.
func Build(cfg *config.Config, m *metrics.Metrics, health *metrics.HealthStatus) (*Stack, error) {
	s := &Stack{metrics: m, health: health}

	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	w, err := sqlitestore.New(sqlitestore.WriterConfig{
		DBPath: cfg.SQLitePath,
		Observe: func(bars int, took time.Duration) {
			m.SQLiteWriteDur.Observe(took.Seconds())
			m.BarsStored.Add(float64(bars))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite writer: %w", err)
	}
	s.Writer = w
	r, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("sqlite reader: %w", err)
	}
	s.reader = r
	health.SetSQLiteOK(true)

	var base model.Provider
	if cfg.FeedBaseURL != "" {
		feed := httpfeed.New(httpfeed.Config{BaseURL: cfg.FeedBaseURL, APIKey: cfg.FeedAPIKey}, &http.Client{Timeout: cfg.FeedTimeout})
		s.record = make(chan *model.BarSeries, 16)
		base = sqlitestore.NewRecorder(feed, s.record)
		slog.Info("serving from http feed", "base_url", cfg.FeedBaseURL, "sqlite", cfg.SQLitePath)
	} else {
		base = sqlitestore.NewProvider(r)
		slog.Info("no feed configured, serving from sqlite", "path", cfg.SQLitePath)
	}
	s.Provider = base

	if cfg.RedisAddr != "" {
		rdb, err := redisstore.Connect(redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			slog.Warn("redis unavailable, continuing without cache", "addr", cfg.RedisAddr, "error", err)
		} else {
			s.Redis = rdb
			s.Cache = s.cache(rdb, base, cfg.CacheTTL)
			s.Provider = s.Cache
		}
	}
	return s, nil
}

func (s *Stack) cache(rdb *goredis.Client, inner model.Provider, ttl time.Duration) *redisstore.CachingProvider {
	cb := redisstore.NewCircuitBreaker(5, 10*time.Second)
	cb.OnStateChange = func(from, to redisstore.State) {
		s.metrics.RedisCircuitBreakerState.Set(float64(to))
		if to == redisstore.StateOpen {
			s.metrics.RedisCircuitBreakerTrips.Inc()
		}
		slog.Warn("redis circuit breaker", "from", from.String(), "to", to.String())
	}
	c := redisstore.NewCachingProvider(rdb, cb, ttl, inner, "series")
	c.OnHit = s.metrics.CacheHits.Inc
	c.OnMiss = s.metrics.CacheMisses.Inc
	return c
}

// Run starts the background writers and liveness checks. It returns
// immediately.
func (s *Stack) Run(ctx context.Context) {
	if s.record != nil {
		go sqlitestore.Persist(ctx, s.Writer, s.record)
	}
	s.health.StartLivenessChecker(ctx, s.Redis, s.Writer.DB(), 10*time.Second)
}

// Close releases storage and the Redis client. Calling it again is a no-op.
func (s *Stack) Close() {
	if s.Redis != nil {
		s.Redis.Close()
		s.Redis = nil
	}
	if s.reader != nil {
		s.reader.Close()
		s.reader = nil
	}
	if s.Writer != nil {
		s.Writer.Close()
		s.Writer = nil
	}
}

// NewSession builds a chart session over the stack's provider, reporting
// into the stack's metrics and health.
func (s *Stack) NewSession(style config.Style, maxWindow int) *session.Session {
	m := s.metrics
	engine := indicator.NewEngine(maxWindow)
	engine.Observe = func(kind indicator.Kind, bars int, took time.Duration) {
		m.IndicatorComputeDur.WithLabelValues(string(kind)).Observe(took.Seconds())
	}

	// IndicatorsActive is process-wide; each session reports its delta.
	active := 0
	hooks := session.Hooks{
		FetchDone: func(result string, took time.Duration, bars int) {
			m.FetchTotal.WithLabelValues(result).Inc()
			if result == "superseded" {
				return
			}
			m.FetchDur.Observe(took.Seconds())
			s.health.RecordFetch(result == "ok", time.Now())
			if result == "ok" {
				m.BarsLoaded.Observe(float64(bars))
			}
		},
		Rendered: func(took time.Duration, recomputes int) {
			m.RenderDur.Observe(took.Seconds())
			m.GeometryRecomputes.Add(float64(recomputes))
		},
		IndicatorSet: func(n int) {
			m.IndicatorsActive.Add(float64(n - active))
			active = n
		},
	}
	return session.New(s.Provider, engine, chart.NewCompositor(style.ChartLayout(), style.RenderOptions()), hooks)
}
