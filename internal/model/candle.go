package model

import (
	"math"
	"time"
)

// Bar is one OHLCV time step. Prices are plain float64: the chart core never
// does arithmetic that needs fixed-point exactness.
type Bar struct {
	TS     time.Time `json:"ts"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Up reports whether the bar closed strictly above its open.
func (b Bar) Up() bool { return b.Close > b.Open }

// Flat reports whether open equals close.
func (b Bar) Flat() bool { return b.Close == b.Open }

// BodyTop returns max(open, close).
func (b Bar) BodyTop() float64 { return math.Max(b.Open, b.Close) }

// BodyBottom returns min(open, close).
func (b Bar) BodyBottom() float64 { return math.Min(b.Open, b.Close) }

// check validates the price/volume invariants of a single bar.
func (b Bar) check() string {
	for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "non-finite value"
		}
	}
	switch {
	case b.Low > b.High:
		return "low above high"
	case b.Low > b.BodyBottom():
		return "low above min(open, close)"
	case b.High < b.BodyTop():
		return "high below max(open, close)"
	case b.Volume < 0:
		return "negative volume"
	case b.TS.IsZero():
		return "missing timestamp"
	}
	return ""
}
