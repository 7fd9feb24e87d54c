// Package metrics exposes Prometheus metrics and the /healthz probe for the
// chart server.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the chart pipeline.
type Metrics struct {
	// Fetch path
	FetchTotal *prometheus.CounterVec // labels: result=ok|error|superseded
	FetchDur   prometheus.Histogram
	BarsLoaded prometheus.Histogram

	// Redis cache
	CacheHits                prometheus.Counter
	CacheMisses              prometheus.Counter
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter

	// SQLite store
	SQLiteWriteDur prometheus.Histogram
	BarsStored     prometheus.Counter

	// Indicator engine
	IndicatorComputeDur *prometheus.HistogramVec // labels: kind
	IndicatorsActive    prometheus.Gauge

	// Rendering
	RenderDur          prometheus.Histogram
	GeometryRecomputes prometheus.Counter

	// Gateway
	WSClients  prometheus.Gauge
	WSEvents   *prometheus.CounterVec // labels: type
	FramesSent prometheus.Counter
}

// NewMetrics registers all metrics with the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers all metrics with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	fast := []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05}

	m := &Metrics{
		FetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chart_fetch_total",
			Help: "Series fetches by outcome",
		}, []string{"result"}),
		FetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chart_fetch_duration_seconds",
			Help:    "Provider fetch latency",
			Buckets: prometheus.DefBuckets,
		}),
		BarsLoaded: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chart_bars_loaded",
			Help:    "Bars per loaded series",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chart_cache_hits_total",
			Help: "Series served from the Redis cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chart_cache_misses_total",
			Help: "Series not found in the Redis cache",
		}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chart_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chart_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),

		SQLiteWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chart_sqlite_write_duration_seconds",
			Help:    "SQLite bar upsert latency per batch",
			Buckets: prometheus.DefBuckets,
		}),
		BarsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chart_bars_stored_total",
			Help: "Bars written to the SQLite store",
		}),

		IndicatorComputeDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chart_indicator_compute_duration_seconds",
			Help:    "Full-series indicator compute latency",
			Buckets: fast,
		}, []string{"kind"}),
		IndicatorsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chart_indicators_active",
			Help: "Indicators attached to the open chart",
		}),

		RenderDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chart_render_duration_seconds",
			Help:    "Frame composition latency",
			Buckets: fast,
		}),
		GeometryRecomputes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chart_geometry_recomputes_total",
			Help: "Geometry batches rebuilt (cache misses)",
		}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chart_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		WSEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chart_ws_events_total",
			Help: "Interaction events received, by type",
		}, []string{"type"}),
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chart_frames_sent_total",
			Help: "Frames written to clients",
		}),
	}

	reg.MustRegister(
		m.FetchTotal,
		m.FetchDur,
		m.BarsLoaded,
		m.CacheHits,
		m.CacheMisses,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.SQLiteWriteDur,
		m.BarsStored,
		m.IndicatorComputeDur,
		m.IndicatorsActive,
		m.RenderDur,
		m.GeometryRecomputes,
		m.WSClients,
		m.WSEvents,
		m.FramesSent,
	)

	return m
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
