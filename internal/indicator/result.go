package indicator

import (
	"math"

	"candlechart/internal/model"
)

// Point is one indicator sample. Ready=false is the explicit "no value"
// marker for positions without enough lookback; Value is then zero and must
// not be drawn.
type Point struct {
	Value float64 `json:"value"`
	Ready bool    `json:"ready"`
}

// Result is an indicator series aligned index-for-index with its source.
// It is replaced on recompute, never edited.
type Result struct {
	ID       string         `json:"id"`
	Spec     Spec           `json:"spec"`
	SeriesID model.SeriesID `json:"series_id"`
	Points   []Point        `json:"points"`
}

// Len returns the number of points (equal to the source series length).
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Points)
}

// At returns the value at i and whether it is defined.
func (r *Result) At(i int) (float64, bool) {
	if i < 0 || i >= r.Len() {
		return 0, false
	}
	p := r.Points[i]
	return p.Value, p.Ready
}

// Bounds returns min/max of defined values in [from, to). ok is false when
// no value in the range is defined.
func (r *Result) Bounds(from, to int) (lo, hi float64, ok bool) {
	if from < 0 {
		from = 0
	}
	if to > r.Len() {
		to = r.Len()
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := from; i < to; i++ {
		p := r.Points[i]
		if !p.Ready {
			continue
		}
		lo = math.Min(lo, p.Value)
		hi = math.Max(hi, p.Value)
		ok = true
	}
	if !ok {
		return 0, 0, false
	}
	return lo, hi, true
}
