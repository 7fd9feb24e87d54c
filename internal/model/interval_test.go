package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedIntervals(t *testing.T) {
	tests := []struct {
		period Period
		want   []Interval
	}{
		{Period1y, []Interval{Interval1d, Interval5d, Interval1wk, Interval1mo, Interval3mo}},
		{PeriodYTD, []Interval{Interval60m, Interval90m, Interval1h, Interval1d, Interval5d, Interval1wk, Interval1mo, Interval3mo}},
		{Period3mo, []Interval{Interval1m, Interval2m, Interval5m, Interval15m, Interval30m, Interval60m, Interval90m, Interval1h, Interval1d, Interval5d, Interval1wk}},
		{Period5d, []Interval{Interval1m, Interval2m, Interval5m, Interval15m, Interval30m, Interval60m, Interval90m, Interval1h}},
		{Period("2w"), nil},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			assert.Equal(t, tt.want, AllowedIntervals(tt.period))
		})
	}
}

func TestFetchRequest_NormalizeValidate(t *testing.T) {
	req := FetchRequest{Ticker: "  msft "}.Normalize()
	assert.Equal(t, "MSFT", req.Ticker)
	assert.Equal(t, DefaultPeriod, req.Period)
	assert.Equal(t, DefaultInterval, req.Interval)
	require.NoError(t, req.Validate())
	assert.Equal(t, "MSFT:1y:1d", req.Key())

	assert.ErrorIs(t, FetchRequest{Period: Period1y, Interval: Interval1d}.Validate(), ErrMissingTicker)
	assert.ErrorIs(t, FetchRequest{Ticker: "X", Period: Period1y, Interval: Interval1m}.Validate(), ErrInvalidRequest)
	assert.ErrorIs(t, FetchRequest{Ticker: "X", Period: "bogus", Interval: Interval1d}.Validate(), ErrInvalidRequest)
}

func TestValidateRequest(t *testing.T) {
	req, err := ValidateRequest(" msft", "", "")
	require.NoError(t, err)
	assert.Equal(t, "MSFT:1y:1d", req.Key())

	_, err = ValidateRequest("MSFT", Period1d, Interval1mo)
	assert.Error(t, err)

	_, err = ValidateRequest("  ", Period1y, Interval1d)
	assert.ErrorIs(t, err, ErrMissingTicker)
}

func TestPeriod_Start(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	start, ok := PeriodYTD.Start(now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), start)

	start, _ = Period3mo.Start(now)
	assert.Equal(t, time.March, start.Month())

	start, _ = Period1y.Start(now)
	assert.Equal(t, 2023, start.Year())

	_, ok = PeriodMax.Start(now)
	assert.False(t, ok)
}
