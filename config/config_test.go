package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves the test into dir so godotenv sees only the .env placed there.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CHART_HTTP_ADDR", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("CACHE_TTL_SEC", "")
	t.Setenv("MAX_INDICATOR_WINDOW", "")

	cfg := Load()
	assert.Equal(t, ":8090", cfg.HTTPAddr)
	assert.Equal(t, "", cfg.RedisAddr)
	assert.Equal(t, 300*time.Second, cfg.CacheTTL)
	assert.Equal(t, 5000, cfg.MaxIndicatorWindow)
	assert.Equal(t, "data/bars.db", cfg.SQLitePath)

	t.Setenv("CHART_HTTP_ADDR", ":7000")
	t.Setenv("CACHE_TTL_SEC", "60")
	t.Setenv("MAX_INDICATOR_WINDOW", "-4")
	cfg = Load()
	assert.Equal(t, ":7000", cfg.HTTPAddr)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, 5000, cfg.MaxIndicatorWindow, "invalid value falls back")
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("FEED_BASE_URL=https://feed.example\nFEED_TIMEOUT_SEC=3\n"), 0o600))
	chdir(t, dir)
	// Setenv registers the restore; godotenv only fills unset keys.
	t.Setenv("FEED_BASE_URL", "")
	t.Setenv("FEED_TIMEOUT_SEC", "")
	os.Unsetenv("FEED_BASE_URL")
	os.Unsetenv("FEED_TIMEOUT_SEC")

	cfg := Load()
	assert.Equal(t, "https://feed.example", cfg.FeedBaseURL)
	assert.Equal(t, 3*time.Second, cfg.FeedTimeout)
}

func TestLoadStyle(t *testing.T) {
	s, err := LoadStyle("")
	require.NoError(t, err)
	assert.Equal(t, DefaultStyle(), s)
	require.NoError(t, s.Validate())

	path := filepath.Join(t.TempDir(), "style.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
colors:
  up: "#22aa22"
  lines: ["#000000"]
candles:
  width_factor: 0.5
  flat_as_up: false
layout:
  width: 800
`), 0o600))

	s, err = LoadStyle(path)
	require.NoError(t, err)
	assert.Equal(t, "#22aa22", s.Colors.Up)
	assert.Equal(t, "#c83c3c", s.Colors.Down, "unset keys keep defaults")
	assert.Equal(t, 0.5, s.RenderOptions().WidthFactor)
	assert.False(t, s.RenderOptions().FlatAsUp)
	assert.Equal(t, 800.0, s.ChartLayout().Width)
	assert.Equal(t, 420.0, s.ChartLayout().PriceHeight)
	assert.Equal(t, "#000000", s.LineColor(3))
}

func TestLoadStyle_Invalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"bad colour": "colors:\n  up: green\n",
		"bad width":  "candles:\n  width_factor: 1.5\n",
		"bad layout": "layout:\n  price_height: 0\n",
		"bad yaml":   "colors: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := LoadStyle(path)
			assert.Error(t, err)
		})
	}

	_, err := LoadStyle(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestStyle_Palette(t *testing.T) {
	s := DefaultStyle()
	s.Colors.Lines = []string{"#010203"}
	p := s.Palette()
	assert.Equal(t, "#00b400", p.Up)
	assert.Equal(t, uint8(180), p.VolumeAlpha)
	assert.Equal(t, []string{"#010203"}, p.Lines)
}
