package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"candlechart/internal/chart"
	"candlechart/internal/export"
	"candlechart/internal/render"
)

// Style is the chart look: colours, glyph sizing and panel layout.
type Style struct {
	Colors struct {
		Background string   `yaml:"background"`
		Up         string   `yaml:"up"`
		Down       string   `yaml:"down"`
		Volume     string   `yaml:"volume"`
		Lines      []string `yaml:"lines"`
	} `yaml:"colors"`
	VolumeAlpha uint8 `yaml:"volume_alpha"`

	Candles struct {
		WidthFactor    float64 `yaml:"width_factor"`
		SingleBarWidth float64 `yaml:"single_bar_width"`
		FlatAsUp       bool    `yaml:"flat_as_up"`
	} `yaml:"candles"`

	Layout struct {
		Width         float64 `yaml:"width"`
		PriceHeight   float64 `yaml:"price_height"`
		VolumeHeight  float64 `yaml:"volume_height"`
		SubplotHeight float64 `yaml:"subplot_height"`
		MinBars       int     `yaml:"min_bars"`
	} `yaml:"layout"`
}

// DefaultStyle is the built-in look: hollow green up candles, solid red down
// candles, translucent blue volume.
func DefaultStyle() Style {
	var s Style
	s.Colors.Background = "#ffffff"
	s.Colors.Up = "#00b400"
	s.Colors.Down = "#c83c3c"
	s.Colors.Volume = "#006496"
	s.Colors.Lines = []string{"#1f77b4", "#ff7f0e", "#9467bd", "#8c564b", "#e377c2"}
	s.VolumeAlpha = 180

	opts := render.DefaultOptions()
	s.Candles.WidthFactor = opts.WidthFactor
	s.Candles.SingleBarWidth = opts.SingleBarWidth
	s.Candles.FlatAsUp = opts.FlatAsUp

	l := chart.DefaultLayout()
	s.Layout.Width = l.Width
	s.Layout.PriceHeight = l.PriceHeight
	s.Layout.VolumeHeight = l.VolumeHeight
	s.Layout.SubplotHeight = l.SubplotHeight
	s.Layout.MinBars = l.MinBars
	return s
}

// LoadStyle overlays the YAML file at path on DefaultStyle. An empty path
// returns the defaults.
func LoadStyle(path string) (Style, error) {
	s := DefaultStyle()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read style: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse style: %w", err)
	}
	return s, s.Validate()
}

var hexColor = regexp.MustCompile(`^#?([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Validate checks colours and sizes.
func (s Style) Validate() error {
	colors := append([]string{s.Colors.Background, s.Colors.Up, s.Colors.Down, s.Colors.Volume}, s.Colors.Lines...)
	for _, c := range colors {
		if !hexColor.MatchString(c) {
			return fmt.Errorf("style: invalid colour %q", c)
		}
	}
	if len(s.Colors.Lines) == 0 {
		return fmt.Errorf("style: at least one line colour is required")
	}
	if s.Candles.WidthFactor <= 0 || s.Candles.WidthFactor > 1 {
		return fmt.Errorf("style: width_factor %v out of (0, 1]", s.Candles.WidthFactor)
	}
	if s.Candles.SingleBarWidth <= 0 {
		return fmt.Errorf("style: single_bar_width must be positive")
	}
	l := s.Layout
	if l.Width <= 0 || l.PriceHeight <= 0 || l.VolumeHeight <= 0 || l.SubplotHeight <= 0 {
		return fmt.Errorf("style: layout sizes must be positive")
	}
	return nil
}

// RenderOptions returns the glyph options for the renderers.
func (s Style) RenderOptions() render.Options {
	return render.Options{
		WidthFactor:    s.Candles.WidthFactor,
		SingleBarWidth: s.Candles.SingleBarWidth,
		FlatAsUp:       s.Candles.FlatAsUp,
	}
}

// ChartLayout returns the compositor layout.
func (s Style) ChartLayout() chart.Layout {
	return chart.Layout{
		Width:         s.Layout.Width,
		PriceHeight:   s.Layout.PriceHeight,
		VolumeHeight:  s.Layout.VolumeHeight,
		SubplotHeight: s.Layout.SubplotHeight,
		MinBars:       s.Layout.MinBars,
	}
}

// LineColor picks the colour for the i-th indicator line.
func (s Style) LineColor(i int) string {
	return s.Colors.Lines[i%len(s.Colors.Lines)]
}

// Palette returns the image export colours.
func (s Style) Palette() export.Palette {
	p := export.DefaultPalette()
	p.Background = s.Colors.Background
	p.Up = s.Colors.Up
	p.Down = s.Colors.Down
	p.Volume = s.Colors.Volume
	p.VolumeAlpha = s.VolumeAlpha
	p.Lines = append([]string(nil), s.Colors.Lines...)
	return p
}
