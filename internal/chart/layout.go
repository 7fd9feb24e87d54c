package chart

// Layout is the pixel geometry of the chart. All panels share Width.
type Layout struct {
	Width         float64
	PriceHeight   float64
	VolumeHeight  float64
	SubplotHeight float64
	// MinBars bounds how far Zoom can narrow the view.
	MinBars int
}

func DefaultLayout() Layout {
	return Layout{
		Width:         1200,
		PriceHeight:   420,
		VolumeHeight:  120,
		SubplotHeight: 160,
		MinBars:       5,
	}
}

func (l Layout) minBars() int {
	if l.MinBars < 1 {
		return 1
	}
	return l.MinBars
}
