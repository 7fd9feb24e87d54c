// Package render turns series and indicator results into batched geometry.
//
// Every renderer is a pure function of (source identity, visible Range,
// Scale) and memoizes its last output on that key, so redraws with an
// unchanged view cost nothing and a changed view costs O(visible bars).
// Coordinates are pixels relative to the panel's top-left corner; x grows to
// the right, y grows downward.
package render

import "math"

// Range is a half-open visible index range [Start, End).
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns End-Start, never negative.
func (r Range) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// Empty reports whether the range holds no index.
func (r Range) Empty() bool { return r.Len() == 0 }

// Contains reports whether i is inside the range.
func (r Range) Contains(i int) bool { return i >= r.Start && i < r.End }

// Clamp restricts r to [0, n). An inverted range collapses to empty at its
// clamped start.
func (r Range) Clamp(n int) Range {
	if n < 0 {
		n = 0
	}
	r.Start = clampInt(r.Start, 0, n)
	r.End = clampInt(r.End, 0, n)
	if r.End < r.Start {
		r.End = r.Start
	}
	return r
}

// Full returns [0, n).
func Full(n int) Range { return Range{Start: 0, End: n} }

// Scale maps bar indices and values to pixels. It is a comparable value so
// it can take part in memo keys. The horizontal mapping (PxPerIndex) must be
// identical for every panel of one chart; the vertical mapping is per panel.
type Scale struct {
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	PxPerIndex float64 `json:"px_per_index"`
	YMin       float64 `json:"y_min"`
	YMax       float64 `json:"y_max"`
}

// NewScale fits r into width pixels and [yMin, yMax] into height pixels.
func NewScale(width, height float64, r Range, yMin, yMax float64) Scale {
	slots := r.Len()
	if slots < 1 {
		slots = 1
	}
	return Scale{
		Width:      width,
		Height:     height,
		PxPerIndex: width / float64(slots),
		YMin:       yMin,
		YMax:       yMax,
	}
}

// WithY returns a copy of s with a different vertical mapping and height.
// The horizontal mapping is kept.
func (s Scale) WithY(height, yMin, yMax float64) Scale {
	s.Height, s.YMin, s.YMax = height, yMin, yMax
	return s
}

// X returns the pixel centre of bar i when r is visible.
func (s Scale) X(r Range, i int) float64 {
	return (float64(i-r.Start) + 0.5) * s.PxPerIndex
}

// Y maps a value to a pixel row. A degenerate value range maps everything
// to the vertical middle.
func (s Scale) Y(v float64) float64 {
	span := s.YMax - s.YMin
	if span <= 0 || math.IsNaN(span) {
		return s.Height / 2
	}
	return s.Height - (v-s.YMin)/span*s.Height
}

// Value is the inverse of Y.
func (s Scale) Value(y float64) float64 {
	if s.Height <= 0 {
		return s.YMin
	}
	return s.YMin + (s.Height-y)/s.Height*(s.YMax-s.YMin)
}

// IndexAt returns the bar index under pixel column px when r is visible.
// The result is not clamped.
func (s Scale) IndexAt(r Range, px float64) int {
	if s.PxPerIndex <= 0 {
		return r.Start
	}
	return r.Start + int(math.Floor(px/s.PxPerIndex))
}

// IndexDelta converts a horizontal pixel distance to a whole number of bars,
// rounding toward zero so sub-bar drags do not move the view.
func (s Scale) IndexDelta(px float64) int {
	if s.PxPerIndex <= 0 {
		return 0
	}
	return int(px / s.PxPerIndex)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
