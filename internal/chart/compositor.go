// Package chart composes the price, volume and indicator panels of one chart
// under a single shared viewport.
//
// The Compositor is the only writer of the visible index range. Panels never
// hold their own copy: the range is handed to every renderer on each Render
// call, so all rows always show the same bars.
package chart

import (
	"errors"
	"fmt"
	"math"
	"time"

	"candlechart/internal/indicator"
	"candlechart/internal/model"
	"candlechart/internal/render"
)

var (
	ErrNotOpen        = errors.New("chart is not open")
	ErrUnknownPanel   = errors.New("no such attached indicator")
	ErrInvalidZoom    = errors.New("zoom factor must be a positive finite number")
	ErrInvalidPan     = errors.New("pan delta must be a finite number")
	ErrEmptyTimeRange = errors.New("time range selects no bars")
)

// attached is an indicator result bound to a panel.
type attached struct {
	id     string
	result *indicator.Result
	line   *render.LineRenderer
}

func (a *attached) label() string { return a.result.Spec.Label() }

// Compositor owns the chart's panels and viewport. It is not safe for
// concurrent use; the session drives it from one goroutine.
type Compositor struct {
	layout Layout
	opts   render.Options

	open   bool
	series *model.BarSeries
	view   render.Range
	// panCarry keeps the sub-bar remainder of pan drags
	panCarry float64

	candles  *render.CandlestickRenderer
	volume   *render.VolumePanel
	overlays []*attached
	subplots []*attached
	// retired counts recomputes of line renderers already dropped
	retired int
}

func NewCompositor(layout Layout, opts render.Options) *Compositor {
	return &Compositor{
		layout:  layout,
		opts:    opts,
		candles: render.NewCandlestickRenderer(opts),
		volume:  render.NewVolumePanel(opts),
	}
}

// Open binds a series and resets the viewport to the full range. Attached
// indicators are dropped: results are never carried across series.
func (c *Compositor) Open(series *model.BarSeries) {
	c.open = true
	c.series = series
	c.dropAll()
	c.view = render.Full(series.Len())
	c.panCarry = 0
}

// Close tears the chart down.
func (c *Compositor) Close() {
	c.open = false
	c.series = nil
	c.dropAll()
	c.view = render.Range{}
	c.candles.Invalidate()
	c.volume.Invalidate()
}

func (c *Compositor) dropAll() {
	for _, list := range [][]*attached{c.overlays, c.subplots} {
		for _, a := range list {
			c.retired += a.line.Recomputes()
		}
	}
	c.overlays, c.subplots = nil, nil
}

// IsOpen reports whether a series is bound.
func (c *Compositor) IsOpen() bool { return c.open }

// Series returns the bound series.
func (c *Compositor) Series() *model.BarSeries { return c.series }

// Viewport returns the shared visible range.
func (c *Compositor) Viewport() render.Range { return c.view }

// SetViewport applies r to every panel at once. Out-of-range requests are
// clamped to the series, never rejected. A request that clamps to nothing
// shows the single bar nearest its start; only an empty series has an empty
// view.
func (c *Compositor) SetViewport(r render.Range) error {
	if !c.open {
		return ErrNotOpen
	}
	n := c.series.Len()
	view := r.Clamp(n)
	if view.Empty() && n > 0 {
		start := min(view.Start, n-1)
		view = render.Range{Start: start, End: start + 1}
	}
	c.view = view
	c.panCarry = 0
	return nil
}

// Reset shows the whole series.
func (c *Compositor) Reset() error {
	return c.SetViewport(render.Full(c.series.Len()))
}

// SetTimeRange shows the bars with from <= TS <= to.
func (c *Compositor) SetTimeRange(from, to time.Time) error {
	if !c.open {
		return ErrNotOpen
	}
	start := c.series.IndexAtOrAfter(from)
	end := c.series.IndexAtOrBefore(to) + 1
	if end <= start {
		return fmt.Errorf("%s..%s: %w", from.Format(time.RFC3339), to.Format(time.RFC3339), ErrEmptyTimeRange)
	}
	return c.SetViewport(render.Range{Start: start, End: end})
}

// Pan moves the view by a horizontal pixel distance. A positive delta moves
// toward later bars. The view keeps its width and stops at the series edges.
func (c *Compositor) Pan(pixelDelta float64) error {
	if !c.open {
		return ErrNotOpen
	}
	if math.IsNaN(pixelDelta) || math.IsInf(pixelDelta, 0) {
		return ErrInvalidPan
	}
	if c.view.Empty() {
		return nil
	}
	sc := c.scale()
	// no drag moves further than the whole series
	limit := float64(c.series.Len()) * sc.PxPerIndex
	total := math.Max(-limit, math.Min(pixelDelta+c.panCarry, limit))
	bars := sc.IndexDelta(total)
	c.panCarry = total - float64(bars)*sc.PxPerIndex

	shifted := c.fit(c.view.Start+bars, c.view.Len())
	if shifted.Start != c.view.Start+bars {
		// pinned at an edge
		c.panCarry = 0
	}
	c.view = shifted
	return nil
}

// Zoom scales the number of visible bars by 1/factor, keeping the bar under
// anchorPixel at the same relative position. factor > 1 zooms in.
func (c *Compositor) Zoom(factor, anchorPixel float64) error {
	if !c.open {
		return ErrNotOpen
	}
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) || math.IsNaN(anchorPixel) {
		return ErrInvalidZoom
	}
	n := c.series.Len()
	if n == 0 {
		return nil
	}
	cur := c.view.Len()
	size := int(math.Round(math.Min(float64(cur)/factor, float64(n))))
	size = max(size, min(c.layout.minBars(), n))

	sc := c.scale()
	anchorPixel = math.Max(0, math.Min(anchorPixel, sc.Width))
	anchor := min(max(sc.IndexAt(c.view, anchorPixel), c.view.Start), c.view.End-1)
	frac := float64(anchor-c.view.Start) / float64(cur)
	// the anchor bar stays inside the new view
	offset := min(int(math.Round(frac*float64(size))), size-1)
	start := anchor - offset

	c.view = c.fit(start, size)
	c.panCarry = 0
	return nil
}

// fit places a window of size bars at start, shifted inside [0, n).
func (c *Compositor) fit(start, size int) render.Range {
	n := c.series.Len()
	size = min(size, n)
	start = min(max(start, 0), n-size)
	return render.Range{Start: start, End: start + size}
}

// Attach routes an indicator result to the price panel or to its own
// subplot. Attaching an id again replaces its result, keeping its row when
// the placement is unchanged.
func (c *Compositor) Attach(id string, res *indicator.Result, placement indicator.Placement) error {
	if !c.open {
		return ErrNotOpen
	}
	if res == nil {
		return fmt.Errorf("attach %s: nil result", id)
	}
	if placement == indicator.PlacementDefault {
		placement = res.Spec.Placement
	}
	var list *[]*attached
	switch placement {
	case indicator.PlacementOverlay:
		list = &c.overlays
	case indicator.PlacementSubplot:
		list = &c.subplots
	default:
		return fmt.Errorf("attach %s: unsupported placement %s", id, placement)
	}
	for _, a := range *list {
		if a.id == id {
			a.result = res
			return nil
		}
	}
	if c.find(id) != nil {
		_ = c.Detach(id)
	}
	*list = append(*list, &attached{id: id, result: res, line: render.NewLineRenderer()})
	return nil
}

// Detach removes an indicator and, for subplots, its row. The viewport is
// left untouched.
func (c *Compositor) Detach(id string) error {
	for _, list := range []*[]*attached{&c.overlays, &c.subplots} {
		for i, a := range *list {
			if a.id == id {
				c.retired += a.line.Recomputes()
				*list = append((*list)[:i], (*list)[i+1:]...)
				return nil
			}
		}
	}
	return fmt.Errorf("%s: %w", id, ErrUnknownPanel)
}

func (c *Compositor) find(id string) *attached {
	for _, a := range c.overlays {
		if a.id == id {
			return a
		}
	}
	for _, a := range c.subplots {
		if a.id == id {
			return a
		}
	}
	return nil
}

// Panels lists the layout rows top to bottom. Every row reports the shared
// viewport range.
func (c *Compositor) Panels() []PanelInfo {
	if !c.open {
		return nil
	}
	out := make([]PanelInfo, 0, 2+len(c.subplots))
	out = append(out,
		PanelInfo{Kind: PanelPrice, Range: c.view},
		PanelInfo{Kind: PanelVolume, Range: c.view},
	)
	for _, a := range c.subplots {
		out = append(out, PanelInfo{Kind: PanelSubplot, ID: a.id, Range: c.view})
	}
	return out
}

// Recomputes counts geometry rebuilds across every renderer the chart has
// used. It never decreases.
func (c *Compositor) Recomputes() int {
	n := c.retired + c.candles.Recomputes() + c.volume.Recomputes()
	for _, a := range c.overlays {
		n += a.line.Recomputes()
	}
	for _, a := range c.subplots {
		n += a.line.Recomputes()
	}
	return n
}

// scale is the price panel's mapping; its horizontal part is shared by all
// panels.
func (c *Compositor) scale() render.Scale {
	lo, hi, ok := render.PriceBounds(c.series, c.view)
	if !ok {
		lo, hi = 0, 1
	}
	for _, a := range c.overlays {
		if l, h, ok := a.result.Bounds(c.view.Start, c.view.End); ok {
			lo, hi = math.Min(lo, l), math.Max(hi, h)
		}
	}
	return render.NewScale(c.layout.Width, c.layout.PriceHeight, c.view, lo, hi)
}

// Render produces the frame for the current state. An empty or missing
// series yields a no-data frame with zero glyphs.
func (c *Compositor) Render() Frame {
	f := Frame{Range: c.view}
	if !c.open {
		f.NoData = true
		f.Message = "No chart loaded"
		return f
	}
	f.Ticker = c.series.Ticker()
	f.Interval = c.series.Interval()
	f.SeriesID = c.series.ID()
	f.Bars = c.series.Len()
	if c.series.Empty() {
		f.NoData = true
		f.Message = fmt.Sprintf("No data available for %s", f.Ticker)
	}

	price := c.scale()
	pp := Panel{
		PanelInfo: PanelInfo{Kind: PanelPrice, Range: c.view},
		Label:     f.Ticker,
		Scale:     price,
		Candles:   c.candles.Render(c.series, c.view, price),
	}
	for _, a := range c.overlays {
		pp.Lines = append(pp.Lines, a.line.Render(a.result, c.view, price))
	}

	vs := price.WithY(c.layout.VolumeHeight, 0, render.VolumeMax(c.series, c.view))
	vp := Panel{
		PanelInfo: PanelInfo{Kind: PanelVolume, Range: c.view},
		Label:     "Volume",
		Scale:     vs,
		Volume:    c.volume.Render(c.series, c.view, vs),
	}
	f.Panels = append(f.Panels, pp, vp)

	for _, a := range c.subplots {
		lo, hi, ok := a.result.Spec.Kind.FixedRange()
		if !ok {
			if lo, hi, ok = a.result.Bounds(c.view.Start, c.view.End); !ok {
				lo, hi = 0, 1
			}
		}
		ss := price.WithY(c.layout.SubplotHeight, lo, hi)
		f.Panels = append(f.Panels, Panel{
			PanelInfo: PanelInfo{Kind: PanelSubplot, ID: a.id, Range: c.view},
			Label:     a.label(),
			Scale:     ss,
			Lines:     []*render.LineBatch{a.line.Render(a.result, c.view, ss)},
		})
	}
	return f
}

// Inspect returns the bar under pixel column x and every defined indicator
// value at that index.
func (c *Compositor) Inspect(pixelX float64) (Inspection, bool) {
	if !c.open || c.view.Empty() {
		return Inspection{}, false
	}
	i := c.scale().IndexAt(c.view, pixelX)
	if !c.view.Contains(i) {
		return Inspection{}, false
	}
	in := Inspection{Index: i, Bar: c.series.At(i), Values: make(map[string]float64)}
	for _, list := range [][]*attached{c.overlays, c.subplots} {
		for _, a := range list {
			if v, ok := a.result.At(i); ok {
				in.Values[a.id] = v
			}
		}
	}
	return in, true
}
