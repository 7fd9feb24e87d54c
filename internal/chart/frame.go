package chart

import (
	"candlechart/internal/model"
	"candlechart/internal/render"
)

// PanelKind tells a drawing surface what a panel holds.
type PanelKind string

const (
	PanelPrice   PanelKind = "price"
	PanelVolume  PanelKind = "volume"
	PanelSubplot PanelKind = "subplot"
)

// PanelInfo describes one row of the layout.
type PanelInfo struct {
	Kind PanelKind `json:"kind"`
	// ID is the indicator id for subplots, empty otherwise.
	ID    string       `json:"id,omitempty"`
	Range render.Range `json:"range"`
}

// Panel is the geometry of one row. Exactly one of Candles, Volume or the
// subplot line is set, plus any overlay Lines on the price panel.
type Panel struct {
	PanelInfo
	Label   string              `json:"label,omitempty"`
	Scale   render.Scale        `json:"scale"`
	Candles *render.CandleBatch `json:"candles,omitempty"`
	Volume  *render.VolumeBatch `json:"volume,omitempty"`
	Lines   []*render.LineBatch `json:"lines,omitempty"`
}

// Glyphs counts every drawable element in the panel.
func (p Panel) Glyphs() int {
	n := p.Candles.Glyphs() + p.Volume.Glyphs()
	for _, l := range p.Lines {
		n += l.Glyphs()
	}
	return n
}

// Frame is one complete render of the chart. Every panel carries the same
// Range.
type Frame struct {
	Ticker   string         `json:"ticker"`
	Interval model.Interval `json:"interval"`
	SeriesID model.SeriesID `json:"series_id"`
	Bars     int            `json:"bars"`
	Range    render.Range   `json:"range"`
	NoData   bool           `json:"no_data"`
	Message  string         `json:"message,omitempty"`
	Panels   []Panel        `json:"panels"`
}

// Panel returns the first panel of the given kind and id.
func (f Frame) Panel(kind PanelKind, id string) (Panel, bool) {
	for _, p := range f.Panels {
		if p.Kind == kind && p.ID == id {
			return p, true
		}
	}
	return Panel{}, false
}

// Glyphs counts every drawable element in the frame.
func (f Frame) Glyphs() int {
	n := 0
	for _, p := range f.Panels {
		n += p.Glyphs()
	}
	return n
}

// Inspection is the crosshair readout for one bar.
type Inspection struct {
	Index  int                `json:"index"`
	Bar    model.Bar          `json:"bar"`
	Values map[string]float64 `json:"values"`
}
