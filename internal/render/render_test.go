package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candlechart/internal/indicator"
	"candlechart/internal/model"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func demoSeries(t *testing.T) *model.BarSeries {
	t.Helper()
	rows := []model.Bar{
		{TS: t0, Open: 10, High: 12, Low: 9, Close: 11, Volume: 100},
		{TS: t0.AddDate(0, 0, 1), Open: 11, High: 13, Low: 10, Close: 12, Volume: 120},
		{TS: t0.AddDate(0, 0, 2), Open: 12, High: 12, Low: 11, Close: 11.5, Volume: 90},
		{TS: t0.AddDate(0, 0, 3), Open: 11.5, High: 14, Low: 11, Close: 13, Volume: 150},
		{TS: t0.AddDate(0, 0, 4), Open: 13, High: 13, Low: 12, Close: 12, Volume: 80},
	}
	s, err := model.NewBarSeries("DEMO", model.Interval1d, rows)
	require.NoError(t, err)
	return s
}

func TestRange_Clamp(t *testing.T) {
	cases := []struct {
		in   Range
		n    int
		want Range
	}{
		{Range{0, 5}, 5, Range{0, 5}},
		{Range{-3, 2}, 5, Range{0, 2}},
		{Range{3, 99}, 5, Range{3, 5}},
		{Range{4, 1}, 5, Range{4, 4}},
		{Range{0, 10}, 0, Range{0, 0}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.in.Clamp(tc.n), "clamp %v to %d", tc.in, tc.n)
	}
}

func TestScale_Mapping(t *testing.T) {
	r := Range{2, 6}
	s := NewScale(400, 100, r, 10, 20)
	assert.Equal(t, 100.0, s.PxPerIndex)
	assert.Equal(t, 50.0, s.X(r, 2))
	assert.Equal(t, 350.0, s.X(r, 5))
	assert.Equal(t, 100.0, s.Y(10))
	assert.Equal(t, 0.0, s.Y(20))
	assert.InDelta(t, 15.0, s.Value(s.Y(15)), 1e-9)

	assert.Equal(t, 2, s.IndexAt(r, 0))
	assert.Equal(t, 3, s.IndexAt(r, 199.9))
	assert.Equal(t, 1, s.IndexAt(r, -1))
	assert.Equal(t, 1, s.IndexDelta(150))
	assert.Equal(t, -1, s.IndexDelta(-150))
	assert.Equal(t, 0, s.IndexDelta(99))

	flat := NewScale(100, 80, r, 5, 5)
	assert.Equal(t, 40.0, flat.Y(5))
}

func TestCandlestickRenderer_Groups(t *testing.T) {
	s := demoSeries(t)
	r := Full(s.Len())
	sc := NewScale(500, 200, r, 9, 14)

	b := NewCandlestickRenderer(DefaultOptions()).Render(s, r, sc)
	assert.Equal(t, 5, b.Glyphs())
	// bars 0,1,3 close above open; 2,4 below.
	assert.Len(t, b.Up.Bodies, 3)
	assert.Len(t, b.Down.Bodies, 2)
	assert.Len(t, b.Up.Wicks, 3)
	assert.Len(t, b.Down.Wicks, 2)

	body := b.Up.Bodies[0]
	assert.InDelta(t, 70.0, body.W, 1e-9)
	assert.InDelta(t, 50.0-35.0, body.X, 1e-9)
	assert.InDelta(t, sc.Y(11), body.Y, 1e-9)
	assert.InDelta(t, sc.Y(10)-sc.Y(11), body.H, 1e-9)

	wick := b.Up.Wicks[0]
	assert.Equal(t, Segment{X1: 50, Y1: sc.Y(12), X2: 50, Y2: sc.Y(9)}, wick)
}

func TestCandlestickRenderer_FlatBars(t *testing.T) {
	rows := []model.Bar{
		{TS: t0, Open: 5, High: 5, Low: 5, Close: 5, Volume: 1},
		{TS: t0.Add(time.Hour), Open: 5, High: 6, Low: 4, Close: 5, Volume: 1},
	}
	s, err := model.NewBarSeries("FLAT", model.Interval1h, rows)
	require.NoError(t, err)
	r := Full(2)
	sc := NewScale(100, 100, r, 4, 6)

	b := NewCandlestickRenderer(DefaultOptions()).Render(s, r, sc)
	require.Equal(t, 2, b.Glyphs())
	require.Len(t, b.Up.Ticks, 2, "flat bars render as ticks, not empty bodies")
	assert.Empty(t, b.Up.Bodies)
	assert.Len(t, b.Up.Wicks, 1, "a zero-range bar has no wick")
	tick := b.Up.Ticks[0]
	assert.Greater(t, tick.X2-tick.X1, 0.0)
	assert.Equal(t, tick.Y1, tick.Y2)

	opts := DefaultOptions()
	opts.FlatAsUp = false
	b = NewCandlestickRenderer(opts).Render(s, r, sc)
	assert.Len(t, b.Down.Ticks, 2)
	assert.Empty(t, b.Up.Ticks)
}

func TestCandlestickRenderer_SingleBarWidth(t *testing.T) {
	s, err := model.NewBarSeries("ONE", model.Interval1d, []model.Bar{
		{TS: t0, Open: 1, High: 3, Low: 0.5, Close: 2, Volume: 10},
	})
	require.NoError(t, err)
	r := Full(1)
	b := NewCandlestickRenderer(DefaultOptions()).Render(s, r, NewScale(800, 100, r, 0, 3))
	require.Len(t, b.Up.Bodies, 1)
	assert.Equal(t, 8.0, b.Up.Bodies[0].W)
}

func TestCandlestickRenderer_Memoizes(t *testing.T) {
	s := demoSeries(t)
	c := NewCandlestickRenderer(DefaultOptions())
	r := Range{1, 4}
	sc := NewScale(300, 100, r, 9, 14)

	first := c.Render(s, r, sc)
	second := c.Render(s, r, sc)
	assert.Same(t, first, second)
	assert.Equal(t, 1, c.Recomputes())

	// clamped ranges share a key
	c.Render(s, Range{1, 4}, sc)
	assert.Equal(t, 1, c.Recomputes())

	c.Render(s, Range{0, 4}, sc)
	assert.Equal(t, 2, c.Recomputes())

	c.Render(s, Range{0, 4}, sc.WithY(100, 0, 20))
	assert.Equal(t, 3, c.Recomputes())

	other := demoSeries(t)
	c.Render(other, Range{0, 4}, sc.WithY(100, 0, 20))
	assert.Equal(t, 4, c.Recomputes(), "new series identity invalidates")
}

func TestCandlestickRenderer_CostFollowsVisibleRange(t *testing.T) {
	rows := make([]model.Bar, 10000)
	for i := range rows {
		p := 100 + float64(i%7)
		rows[i] = model.Bar{TS: t0.Add(time.Duration(i) * time.Minute), Open: p, High: p + 1, Low: p - 1, Close: p + 0.5, Volume: 1}
	}
	s, err := model.NewBarSeries("BIG", model.Interval1m, rows)
	require.NoError(t, err)
	r := Range{5000, 5050}
	b := NewCandlestickRenderer(DefaultOptions()).Render(s, r, NewScale(500, 100, r, 90, 110))
	assert.Equal(t, 50, b.Glyphs())
}

func TestCandlestickRenderer_Empty(t *testing.T) {
	empty, err := model.NewBarSeries("NONE", model.Interval1d, nil)
	require.NoError(t, err)
	r := Range{0, 10}
	c := NewCandlestickRenderer(DefaultOptions())
	assert.Equal(t, 0, c.Render(empty, r, NewScale(100, 100, r, 0, 1)).Glyphs())
	assert.Equal(t, 0, c.Render(nil, r, NewScale(100, 100, r, 0, 1)).Glyphs())
	assert.Equal(t, 0, NewVolumePanel(DefaultOptions()).Render(empty, r, NewScale(100, 50, r, 0, 0)).Glyphs())
}

func TestVolumePanel_NormalizesToVisibleMax(t *testing.T) {
	s := demoSeries(t)
	v := NewVolumePanel(DefaultOptions())

	full := Full(5)
	b := v.Render(s, full, NewScale(500, 50, full, 0, 0))
	assert.Equal(t, 150.0, b.Max)
	assert.InDelta(t, 50.0, b.Bars[3].H, 1e-9)

	panned := Range{1, 4}
	b = v.Render(s, panned, NewScale(300, 50, panned, 0, 0))
	assert.Equal(t, 150.0, b.Max)
	require.Len(t, b.Bars, 3)

	noPeak := Range{0, 3}
	b = v.Render(s, noPeak, NewScale(300, 50, noPeak, 0, 0))
	assert.Equal(t, 120.0, b.Max, "max comes from indices 0..2 only")
	assert.InDelta(t, 50.0, b.Bars[1].H, 1e-9)
	assert.InDelta(t, 50.0*100/120, b.Bars[0].H, 1e-9)
	assert.InDelta(t, 50.0-b.Bars[0].H, b.Bars[0].Y, 1e-9)
}

func TestVolumePanel_SharesColumnsWithCandles(t *testing.T) {
	s := demoSeries(t)
	r := Range{1, 5}
	price := NewScale(400, 200, r, 9, 14)
	vol := price.WithY(60, 0, 0)

	cb := NewCandlestickRenderer(DefaultOptions()).Render(s, r, price)
	vb := NewVolumePanel(DefaultOptions()).Render(s, r, vol)

	centers := func(rects []Rect) []float64 {
		out := make([]float64, len(rects))
		for i, rc := range rects {
			out[i] = rc.X + rc.W/2
		}
		return out
	}
	candles := append(centers(cb.Up.Bodies), centers(cb.Down.Bodies)...)
	for _, c := range candles {
		assert.Contains(t, centers(vb.Bars), c)
	}
}

func TestVolumePanel_ZeroVolume(t *testing.T) {
	s, err := model.NewBarSeries("ZERO", model.Interval1d, []model.Bar{
		{TS: t0, Open: 1, High: 1, Low: 1, Close: 1},
		{TS: t0.AddDate(0, 0, 1), Open: 1, High: 1, Low: 1, Close: 1},
	})
	require.NoError(t, err)
	r := Full(2)
	b := NewVolumePanel(DefaultOptions()).Render(s, r, NewScale(100, 40, r, 0, 0))
	require.Len(t, b.Bars, 2)
	assert.Equal(t, 0.0, b.Bars[0].H)
}

func TestLineRenderer_BreaksOnNoValue(t *testing.T) {
	s := demoSeries(t)
	res, err := indicator.Compute(s, indicator.Spec{Kind: indicator.KindSMA, Params: map[string]float64{indicator.ParamWindow: 3}})
	require.NoError(t, err)

	r := Full(5)
	sc := NewScale(500, 100, r, 10, 14)
	l := NewLineRenderer()
	b := l.Render(res, r, sc)
	require.Len(t, b.Runs, 1)
	assert.Len(t, b.Runs[0], 3)
	assert.Equal(t, sc.X(r, 2), b.Runs[0][0].X)
	assert.Equal(t, "sma_3", b.ID)

	gappy := &indicator.Result{ID: "x", Points: []indicator.Point{
		{Value: 1, Ready: true}, {}, {Value: 2, Ready: true}, {Value: 3, Ready: true},
	}}
	b = l.Render(gappy, Full(4), sc)
	require.Len(t, b.Runs, 2)
	assert.Equal(t, 3, b.Glyphs())

	l.Render(gappy, Full(4), sc)
	assert.Equal(t, 2, l.Recomputes())
}

func TestBounds(t *testing.T) {
	s := demoSeries(t)
	lo, hi, ok := PriceBounds(s, Range{1, 3})
	require.True(t, ok)
	assert.Equal(t, 10.0, lo)
	assert.Equal(t, 13.0, hi)

	_, _, ok = PriceBounds(s, Range{5, 9})
	assert.False(t, ok)

	flat, err := model.NewBarSeries("F", model.Interval1d, []model.Bar{{TS: t0, Open: 50, High: 50, Low: 50, Close: 50}})
	require.NoError(t, err)
	lo, hi, _ = PriceBounds(flat, Full(1))
	assert.Less(t, lo, 50.0)
	assert.Greater(t, hi, 50.0)

	assert.Equal(t, 150.0, VolumeMax(s, Range{-1, 10}))
}
