package render

import "candlechart/internal/model"

// VolumeBatch holds one bar per visible index. Heights are normalized to Max,
// the largest volume inside the visible range.
type VolumeBatch struct {
	SeriesID model.SeriesID `json:"series_id"`
	Range    Range          `json:"range"`
	Scale    Scale          `json:"scale"`
	Max      float64        `json:"max"`
	Bars     []Rect         `json:"bars"`
}

// Glyphs returns the number of volume bars.
func (b *VolumeBatch) Glyphs() int {
	if b == nil {
		return 0
	}
	return len(b.Bars)
}

// VolumePanel draws volumes under the price chart. It must be given the same
// Range and PxPerIndex as the candle renderer so columns line up; only the
// vertical part of its Scale differs.
type VolumePanel struct {
	opts  Options
	cache memo[seriesKey, *VolumeBatch]
}

func NewVolumePanel(opts Options) *VolumePanel {
	return &VolumePanel{opts: opts}
}

func (v *VolumePanel) Render(series *model.BarSeries, r Range, s Scale) *VolumeBatch {
	r = r.Clamp(series.Len())
	key := seriesKey{r: r, s: s}
	if series != nil {
		key.id = series.ID()
	}
	return v.cache.get(key, func() *VolumeBatch { return v.build(series, r, s, key.id) })
}

func (v *VolumePanel) Recomputes() int { return v.cache.recomputes }

func (v *VolumePanel) Invalidate() { v.cache.reset() }

func (v *VolumePanel) build(series *model.BarSeries, r Range, s Scale, id model.SeriesID) *VolumeBatch {
	b := &VolumeBatch{SeriesID: id, Range: r, Scale: s}
	if r.Empty() {
		return b
	}
	b.Max = VolumeMax(series, r)
	w := v.opts.bodyWidth(series, s)
	b.Bars = make([]Rect, 0, r.Len())
	for i := r.Start; i < r.End; i++ {
		h := 0.0
		if b.Max > 0 {
			h = series.At(i).Volume / b.Max * s.Height
		}
		b.Bars = append(b.Bars, Rect{X: s.X(r, i) - w/2, Y: s.Height - h, W: w, H: h})
	}
	return b
}
