package sqlite

import (
	"context"
	"log/slog"
	"time"

	"candlechart/internal/logger"
	"candlechart/internal/model"
)

// Provider serves fetch requests from stored bars, for offline use.
type Provider struct {
	reader model.BarReader
	now    func() time.Time
}

func NewProvider(reader model.BarReader) *Provider {
	return &Provider{reader: reader, now: time.Now}
}

// Fetch returns the stored bars inside the request period. Nothing stored is
// an empty series, not an error.
func (p *Provider) Fetch(ctx context.Context, req model.FetchRequest) (*model.BarSeries, error) {
	var after int64 = -1
	if start, ok := req.Period.Start(p.now()); ok {
		after = start.Unix() - 1
	}
	bars, err := p.reader.ReadBars(ctx, req.Ticker, req.Interval, after)
	if err != nil {
		return nil, &model.FetchError{Ticker: req.Ticker, Period: req.Period, Interval: req.Interval, Err: err}
	}
	return model.NewBarSeries(req.Ticker, req.Interval, bars)
}

// Recorder tees every successful fetch of an inner provider to a writer
// channel. A full channel drops the copy rather than delay the chart.
type Recorder struct {
	inner model.Provider
	out   chan<- *model.BarSeries
}

func NewRecorder(inner model.Provider, out chan<- *model.BarSeries) *Recorder {
	return &Recorder{inner: inner, out: out}
}

func (r *Recorder) Fetch(ctx context.Context, req model.FetchRequest) (*model.BarSeries, error) {
	s, err := r.inner.Fetch(ctx, req)
	if err != nil || s.Empty() {
		return s, err
	}
	select {
	case r.out <- s:
	default:
		logger.FromContext(ctx).Warn("store queue full, series not recorded", slog.String("ticker", s.Ticker()))
	}
	return s, nil
}
