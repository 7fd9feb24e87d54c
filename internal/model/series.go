package model

import (
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

// seriesSeq hands out identity tokens. Zero is never issued.
var seriesSeq atomic.Uint64

// SeriesID is the stable identity of one loaded BarSeries. Two series built
// from identical rows still get different ids: a new fetch is a new series.
type SeriesID uint64

// BarSeries is an ordered, immutable sequence of bars for one ticker and
// interval. It is safe to share between renderers; nothing mutates it after
// NewBarSeries returns.
type BarSeries struct {
	id       SeriesID
	ticker   string
	interval Interval
	bars     []Bar
}

// NewBarSeries validates rows and builds a series. Zero rows is valid and
// yields an empty series. Rows are copied.
func NewBarSeries(ticker string, interval Interval, rows []Bar) (*BarSeries, error) {
	for i, b := range rows {
		if reason := b.check(); reason != "" {
			return nil, &InvalidDataError{Index: i, Reason: reason}
		}
		if i > 0 && !b.TS.After(rows[i-1].TS) {
			return nil, &InvalidDataError{Index: i, Reason: "timestamp not strictly increasing"}
		}
	}
	bars := make([]Bar, len(rows))
	copy(bars, rows)
	return &BarSeries{
		id:       SeriesID(seriesSeq.Add(1)),
		ticker:   strings.ToUpper(strings.TrimSpace(ticker)),
		interval: interval,
		bars:     bars,
	}, nil
}

func (s *BarSeries) ID() SeriesID       { return s.id }
func (s *BarSeries) Ticker() string     { return s.ticker }
func (s *BarSeries) Interval() Interval { return s.interval }

// Len returns the number of bars. A nil series has length zero.
func (s *BarSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.bars)
}

// Empty reports the explicit no-data state.
func (s *BarSeries) Empty() bool { return s.Len() == 0 }

// At returns the bar at index i. It panics when i is out of range, like a
// slice index.
func (s *BarSeries) At(i int) Bar { return s.bars[i] }

// Closes returns a copy of the close prices.
func (s *BarSeries) Closes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Close
	}
	return out
}

// Bars returns a copy of the underlying rows.
func (s *BarSeries) Bars() []Bar {
	out := make([]Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// IndexAtOrBefore returns the index of the last bar with TS <= t, or -1 when
// t precedes the first bar.
func (s *BarSeries) IndexAtOrBefore(t time.Time) int {
	n := sort.Search(len(s.bars), func(i int) bool { return s.bars[i].TS.After(t) })
	return n - 1
}

// IndexAtOrAfter returns the index of the first bar with TS >= t, or Len()
// when t is past the last bar.
func (s *BarSeries) IndexAtOrAfter(t time.Time) int {
	return sort.Search(len(s.bars), func(i int) bool { return !s.bars[i].TS.Before(t) })
}
