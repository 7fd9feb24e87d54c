package render

import (
	"candlechart/internal/model"
)

// Options tune candle and volume glyphs.
type Options struct {
	// WidthFactor is the body width as a fraction of the index pitch.
	WidthFactor float64
	// SingleBarWidth is the body width in pixels when the series has one bar.
	SingleBarWidth float64
	// FlatAsUp sends open==close bars to the up group.
	FlatAsUp bool
}

// DefaultOptions match the original chart: 70% body width, 8px single bar,
// flat bars coloured as up.
func DefaultOptions() Options {
	return Options{WidthFactor: 0.7, SingleBarWidth: 8, FlatAsUp: true}
}

func (o Options) bodyWidth(series *model.BarSeries, s Scale) float64 {
	if series.Len() == 1 {
		return o.SingleBarWidth
	}
	return o.WidthFactor * s.PxPerIndex
}

// CandleGroup is every glyph of one colour class, batched by primitive.
type CandleGroup struct {
	Bodies []Rect    `json:"bodies"`
	Wicks  []Segment `json:"wicks"`
	// Ticks are horizontal marks for bars whose open equals close.
	Ticks []Segment `json:"ticks"`
}

func (g CandleGroup) len() int { return len(g.Bodies) + len(g.Ticks) }

// CandleBatch is the geometry of the visible candles. Up candles are drawn
// hollow, down candles solid.
type CandleBatch struct {
	SeriesID model.SeriesID `json:"series_id"`
	Range    Range          `json:"range"`
	Scale    Scale          `json:"scale"`
	Up       CandleGroup    `json:"up"`
	Down     CandleGroup    `json:"down"`
}

// Glyphs returns the number of candles in the batch.
func (b *CandleBatch) Glyphs() int {
	if b == nil {
		return 0
	}
	return b.Up.len() + b.Down.len()
}

type seriesKey struct {
	id model.SeriesID
	r  Range
	s  Scale
}

// CandlestickRenderer converts a visible slice of a series into a
// CandleBatch. It keeps only its last batch; one renderer serves one panel.
type CandlestickRenderer struct {
	opts  Options
	cache memo[seriesKey, *CandleBatch]
}

func NewCandlestickRenderer(opts Options) *CandlestickRenderer {
	return &CandlestickRenderer{opts: opts}
}

// Render returns the batch for series over r at scale s. r is clamped to the
// series. A repeated call with the same inputs returns the cached batch.
func (c *CandlestickRenderer) Render(series *model.BarSeries, r Range, s Scale) *CandleBatch {
	r = r.Clamp(series.Len())
	key := seriesKey{r: r, s: s}
	if series != nil {
		key.id = series.ID()
	}
	return c.cache.get(key, func() *CandleBatch { return c.build(series, r, s, key.id) })
}

// Recomputes counts how many times geometry was rebuilt.
func (c *CandlestickRenderer) Recomputes() int { return c.cache.recomputes }

// Invalidate drops the cached batch.
func (c *CandlestickRenderer) Invalidate() { c.cache.reset() }

func (c *CandlestickRenderer) build(series *model.BarSeries, r Range, s Scale, id model.SeriesID) *CandleBatch {
	b := &CandleBatch{SeriesID: id, Range: r, Scale: s}
	if r.Empty() {
		return b
	}
	w := c.opts.bodyWidth(series, s)
	half := w / 2

	for i := r.Start; i < r.End; i++ {
		bar := series.At(i)
		g := &b.Down
		if bar.Up() || (bar.Flat() && c.opts.FlatAsUp) {
			g = &b.Up
		}

		x := s.X(r, i)
		if bar.High > bar.Low {
			g.Wicks = append(g.Wicks, Segment{X1: x, Y1: s.Y(bar.High), X2: x, Y2: s.Y(bar.Low)})
		}
		if bar.Flat() {
			y := s.Y(bar.Open)
			g.Ticks = append(g.Ticks, Segment{X1: x - half, Y1: y, X2: x + half, Y2: y})
			continue
		}
		top := s.Y(bar.BodyTop())
		g.Bodies = append(g.Bodies, Rect{X: x - half, Y: top, W: w, H: s.Y(bar.BodyBottom()) - top})
	}
	return b
}
