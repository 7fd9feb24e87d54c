// Package config loads server settings from the environment (optionally
// seeded from a .env file) and the chart style from YAML.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	HTTPAddr    string
	MetricsAddr string
	LogLevel    string

	// Redis cache; empty RedisAddr disables it
	RedisAddr     string
	RedisPassword string
	CacheTTL      time.Duration

	SQLitePath string

	// HTTP feed; empty FeedBaseURL serves from SQLite only
	FeedBaseURL string
	FeedAPIKey  string
	FeedTimeout time.Duration

	StyleFile          string
	MaxIndicatorWindow int
}

// Load reads a .env file if present, then the environment, with defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("ignoring unreadable .env file", "error", err)
	}

	return &Config{
		HTTPAddr:    getEnv("CHART_HTTP_ADDR", ":8090"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		CacheTTL:      time.Duration(getEnvInt("CACHE_TTL_SEC", 300)) * time.Second,

		SQLitePath: getEnv("SQLITE_PATH", "data/bars.db"),

		FeedBaseURL: getEnv("FEED_BASE_URL", ""),
		FeedAPIKey:  getEnv("FEED_API_KEY", ""),
		FeedTimeout: time.Duration(getEnvInt("FEED_TIMEOUT_SEC", 10)) * time.Second,

		StyleFile:          getEnv("STYLE_FILE", ""),
		MaxIndicatorWindow: getEnvInt("MAX_INDICATOR_WINDOW", 5000),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}
