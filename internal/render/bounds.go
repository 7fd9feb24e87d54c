package render

import (
	"math"

	"candlechart/internal/model"
)

// minPriceSpan keeps a flat visible range from collapsing the price axis.
const minPriceSpan = 1e-6

// PriceBounds returns the lowest low and highest high in r. A flat range is
// padded around its price so the axis always has height.
func PriceBounds(series *model.BarSeries, r Range) (lo, hi float64, ok bool) {
	r = r.Clamp(series.Len())
	if r.Empty() {
		return 0, 0, false
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := r.Start; i < r.End; i++ {
		b := series.At(i)
		lo = math.Min(lo, b.Low)
		hi = math.Max(hi, b.High)
	}
	if hi-lo < minPriceSpan {
		pad := math.Max(math.Abs(hi)*0.01, minPriceSpan)
		lo, hi = lo-pad, hi+pad
	}
	return lo, hi, true
}

// VolumeMax returns the largest volume in r, or 0 when r is empty.
func VolumeMax(series *model.BarSeries, r Range) float64 {
	r = r.Clamp(series.Len())
	peak := 0.0
	for i := r.Start; i < r.End; i++ {
		peak = math.Max(peak, series.At(i).Volume)
	}
	return peak
}
