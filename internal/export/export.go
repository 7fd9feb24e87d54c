// Package export draws a chart frame to a PNG or SVG image.
package export

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"candlechart/internal/chart"
	"candlechart/internal/render"
)

// Format is an output image format.
type Format string

const (
	PNG Format = "png"
	SVG Format = "svg"
)

// ParseFormat accepts "png" or "svg", case-insensitively. Empty means PNG.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", PNG:
		return PNG, nil
	case SVG:
		return SVG, nil
	}
	return "", fmt.Errorf("unsupported image format %q", s)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == SVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// Palette holds hex colours ("#rrggbb" or "rrggbb").
type Palette struct {
	Background  string
	Up          string
	Down        string
	Volume      string
	VolumeAlpha uint8
	Text        string
	// Lines cycle across indicator lines in panel order.
	Lines []string
}

// DefaultPalette matches the default chart style.
func DefaultPalette() Palette {
	return Palette{
		Background:  "#ffffff",
		Up:          "#00b400",
		Down:        "#c83c3c",
		Volume:      "#006496",
		VolumeAlpha: 180,
		Text:        "#333333",
		Lines:       []string{"#1f77b4", "#ff7f0e", "#9467bd", "#8c564b", "#e377c2"},
	}
}

const (
	fallbackWidth  = 800
	fallbackHeight = 400
	fontSize       = 10.0
)

func hex(s string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(s, "#"))
}

// Write draws f and encodes it to w.
func Write(w io.Writer, f chart.Frame, format Format, p Palette) error {
	if len(p.Lines) == 0 {
		p.Lines = DefaultPalette().Lines
	}
	width, height := frameSize(f)

	provider := gochart.PNG
	if format == SVG {
		provider = gochart.SVG
	}
	r, err := provider(width, height)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	font, err := gochart.GetDefaultFont()
	if err != nil {
		return fmt.Errorf("load font: %w", err)
	}
	r.SetFont(font)
	r.SetFontSize(fontSize)
	r.SetFontColor(hex(p.Text))

	d := &drawer{r: r, p: p}
	d.rect(0, 0, float64(width), float64(height), hex(p.Background), hex(p.Background), true)

	if f.NoData {
		msg := f.Message
		if msg == "" {
			msg = "No data"
		}
		tw := r.MeasureText(msg).Width()
		r.Text(msg, (width-tw)/2, height/2)
		return r.Save(w)
	}

	top := 0.0
	line := 0
	for _, panel := range f.Panels {
		d.top = top
		switch {
		case panel.Candles != nil:
			d.candles(panel.Candles)
		case panel.Volume != nil:
			d.volume(panel.Volume)
		}
		d.axis(panel, top)
		for i, l := range panel.Lines {
			c := hex(p.Lines[line%len(p.Lines)])
			d.line(l, c)
			if panel.Kind == chart.PanelPrice {
				d.legend(l.ID, c, top, i)
			}
			line++
		}
		top += panel.Scale.Height
	}
	return r.Save(w)
}

func frameSize(f chart.Frame) (int, int) {
	var w, h float64
	for _, p := range f.Panels {
		w = math.Max(w, p.Scale.Width)
		h += p.Scale.Height
	}
	if w < 1 || h < 1 {
		return fallbackWidth, fallbackHeight
	}
	return int(math.Ceil(w)), int(math.Ceil(h))
}

// drawer strokes panel geometry offset by the panel's top edge.
type drawer struct {
	r   gochart.Renderer
	p   Palette
	top float64
}

func px(v float64) int { return int(math.Round(v)) }

func (d *drawer) rect(x, y, w, h float64, stroke, fill drawing.Color, filled bool) {
	// Keep hairline bodies visible.
	w, h = math.Max(w, 1), math.Max(h, 1)
	d.r.SetStrokeColor(stroke)
	d.r.SetStrokeWidth(1)
	d.r.MoveTo(px(x), px(d.top+y))
	d.r.LineTo(px(x+w), px(d.top+y))
	d.r.LineTo(px(x+w), px(d.top+y+h))
	d.r.LineTo(px(x), px(d.top+y+h))
	d.r.Close()
	if filled {
		d.r.SetFillColor(fill)
		d.r.FillStroke()
		return
	}
	d.r.Stroke()
}

func (d *drawer) segments(segs []render.Segment, c drawing.Color) {
	if len(segs) == 0 {
		return
	}
	d.r.SetStrokeColor(c)
	d.r.SetStrokeWidth(1)
	for _, s := range segs {
		d.r.MoveTo(px(s.X1), px(d.top+s.Y1))
		d.r.LineTo(px(s.X2), px(d.top+s.Y2))
	}
	d.r.Stroke()
}

func (d *drawer) candles(b *render.CandleBatch) {
	up, down := hex(d.p.Up), hex(d.p.Down)
	d.segments(b.Up.Wicks, up)
	d.segments(b.Up.Ticks, up)
	for _, body := range b.Up.Bodies {
		d.rect(body.X, body.Y, body.W, body.H, up, up, false)
	}
	d.segments(b.Down.Wicks, down)
	d.segments(b.Down.Ticks, down)
	for _, body := range b.Down.Bodies {
		d.rect(body.X, body.Y, body.W, body.H, down, down, true)
	}
}

func (d *drawer) volume(b *render.VolumeBatch) {
	c := hex(d.p.Volume)
	c.A = d.p.VolumeAlpha
	for _, bar := range b.Bars {
		if bar.H <= 0 {
			continue
		}
		d.rect(bar.X, bar.Y, bar.W, bar.H, c, c, true)
	}
}

func (d *drawer) line(b *render.LineBatch, c drawing.Color) {
	d.r.SetStrokeColor(c)
	d.r.SetStrokeWidth(1.5)
	for _, run := range b.Runs {
		if len(run) < 2 {
			continue
		}
		d.r.MoveTo(px(run[0].X), px(d.top+run[0].Y))
		for _, v := range run[1:] {
			d.r.LineTo(px(v.X), px(d.top+v.Y))
		}
	}
	d.r.Stroke()
}

// legend names an overlay line under the panel label.
func (d *drawer) legend(id string, c drawing.Color, top float64, i int) {
	d.r.SetFontColor(c)
	d.r.Text(id, 4, px(top)+26+i*12)
	d.r.SetFontColor(hex(d.p.Text))
}

// axis writes the panel label and its value bounds, and rules off the
// panel's bottom edge.
func (d *drawer) axis(p chart.Panel, top float64) {
	s := p.Scale
	label := p.Label
	if label == "" {
		label = string(p.Kind)
	}
	d.r.Text(label, 4, px(top)+12)

	hi := strconv.FormatFloat(s.YMax, 'f', 2, 64)
	lo := strconv.FormatFloat(s.YMin, 'f', 2, 64)
	right := px(s.Width) - 4
	d.r.Text(hi, right-d.r.MeasureText(hi).Width(), px(top)+12)
	d.r.Text(lo, right-d.r.MeasureText(lo).Width(), px(top+s.Height)-4)

	d.r.SetStrokeColor(hex(d.p.Text).WithAlpha(64))
	d.r.SetStrokeWidth(1)
	d.r.MoveTo(0, px(top+s.Height))
	d.r.LineTo(px(s.Width), px(top+s.Height))
	d.r.Stroke()
}
