package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Interval is the bar spacing of a series.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval2m  Interval = "2m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval60m Interval = "60m"
	Interval90m Interval = "90m"
	Interval1h  Interval = "1h"
	Interval1d  Interval = "1d"
	Interval5d  Interval = "5d"
	Interval1wk Interval = "1wk"
	Interval1mo Interval = "1mo"
	Interval3mo Interval = "3mo"

	DefaultInterval = Interval1d
)

// Intervals is the canonical interval order used for menus and sorting.
var Intervals = []Interval{
	Interval1m, Interval2m, Interval5m, Interval15m, Interval30m,
	Interval60m, Interval90m, Interval1h,
	Interval1d, Interval5d, Interval1wk,
	Interval1mo, Interval3mo,
}

// Period is the lookback span requested from a provider.
type Period string

const (
	Period1d  Period = "1d"
	Period5d  Period = "5d"
	Period1mo Period = "1mo"
	Period3mo Period = "3mo"
	Period6mo Period = "6mo"
	Period1y  Period = "1y"
	Period2y  Period = "2y"
	Period5y  Period = "5y"
	Period10y Period = "10y"
	PeriodYTD Period = "ytd"
	PeriodMax Period = "max"

	DefaultPeriod = Period1y
)

// Periods lists every supported period.
var Periods = []Period{
	Period1d, Period5d, Period1mo, Period3mo, Period6mo,
	Period1y, Period2y, Period5y, Period10y, PeriodYTD, PeriodMax,
}

var (
	intradayShort  = []Interval{Interval1m, Interval2m, Interval5m, Interval15m, Interval30m}
	intradayMedium = []Interval{Interval60m, Interval90m, Interval1h}
	dailyWeekly    = []Interval{Interval1d, Interval5d, Interval1wk}
	monthly        = []Interval{Interval1mo, Interval3mo}
)

// AllowedIntervals returns the intervals a provider can serve for period,
// in canonical order. Unknown periods return nil.
func AllowedIntervals(p Period) []Interval {
	var groups [][]Interval
	switch p {
	case Period1y, Period2y, Period5y, Period10y, PeriodMax:
		groups = [][]Interval{dailyWeekly, monthly}
	case Period6mo, PeriodYTD:
		groups = [][]Interval{intradayMedium, dailyWeekly, monthly}
	case Period1mo, Period3mo:
		groups = [][]Interval{intradayShort, intradayMedium, dailyWeekly}
	case Period1d, Period5d:
		groups = [][]Interval{intradayShort, intradayMedium}
	default:
		return nil
	}
	allowed := make(map[Interval]bool)
	for _, g := range groups {
		for _, iv := range g {
			allowed[iv] = true
		}
	}
	out := make([]Interval, 0, len(allowed))
	for _, iv := range Intervals {
		if allowed[iv] {
			out = append(out, iv)
		}
	}
	return out
}

// FetchRequest identifies one provider call.
type FetchRequest struct {
	Ticker   string   `json:"ticker"`
	Period   Period   `json:"period"`
	Interval Interval `json:"interval"`
}

var (
	// ErrInvalidRequest wraps every Validate failure.
	ErrInvalidRequest = errors.New("invalid request")
	ErrMissingTicker  = fmt.Errorf("%w: ticker is required", ErrInvalidRequest)
)

// Normalize trims and upper-cases the ticker and fills in default period and
// interval.
func (r FetchRequest) Normalize() FetchRequest {
	r.Ticker = strings.ToUpper(strings.TrimSpace(r.Ticker))
	if r.Period == "" {
		r.Period = DefaultPeriod
	}
	if r.Interval == "" {
		r.Interval = DefaultInterval
	}
	return r
}

// Validate checks the request before any provider is called.
func (r FetchRequest) Validate() error {
	if r.Ticker == "" {
		return ErrMissingTicker
	}
	allowed := AllowedIntervals(r.Period)
	if allowed == nil {
		return fmt.Errorf("%w: unknown period %q", ErrInvalidRequest, r.Period)
	}
	for _, iv := range allowed {
		if iv == r.Interval {
			return nil
		}
	}
	return fmt.Errorf("%w: interval %q not available for period %q", ErrInvalidRequest, r.Interval, r.Period)
}

// Key returns "TICKER:period:interval".
func (r FetchRequest) Key() string {
	return r.Ticker + ":" + string(r.Period) + ":" + string(r.Interval)
}

// ValidateRequest normalizes and validates a request in one step.
func ValidateRequest(ticker string, period Period, interval Interval) (FetchRequest, error) {
	req := FetchRequest{Ticker: ticker, Period: period, Interval: interval}.Normalize()
	return req, req.Validate()
}

// Start returns the first instant covered by p when looking back from now.
// PeriodMax has no start.
func (p Period) Start(now time.Time) (time.Time, bool) {
	now = now.UTC()
	switch p {
	case Period1d:
		return now.AddDate(0, 0, -1), true
	case Period5d:
		return now.AddDate(0, 0, -5), true
	case Period1mo:
		return now.AddDate(0, -1, 0), true
	case Period3mo:
		return now.AddDate(0, -3, 0), true
	case Period6mo:
		return now.AddDate(0, -6, 0), true
	case Period1y:
		return now.AddDate(-1, 0, 0), true
	case Period2y:
		return now.AddDate(-2, 0, 0), true
	case Period5y:
		return now.AddDate(-5, 0, 0), true
	case Period10y:
		return now.AddDate(-10, 0, 0), true
	case PeriodYTD:
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}
