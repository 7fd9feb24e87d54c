// Package session ties one chart together: it owns the indicator engine and
// the compositor, and swaps in new series as fetches complete.
//
// Every method except RequestFetch must be called from the single goroutine
// that drives the chart. RequestFetch starts the only asynchronous work, a
// provider call, whose outcome comes back on Outcomes() for that goroutine
// to hand to Deliver.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"candlechart/internal/chart"
	"candlechart/internal/indicator"
	"candlechart/internal/logger"
	"candlechart/internal/model"
	"candlechart/internal/render"
)

// FetchOutcome is the result of one provider call.
type FetchOutcome struct {
	Generation uint64
	Request    model.FetchRequest
	Series     *model.BarSeries
	Err        error
	Took       time.Duration
	ctx        context.Context
}

// Hooks receive pipeline events. Any field may be nil.
type Hooks struct {
	FetchDone    func(result string, took time.Duration, bars int)
	Rendered     func(took time.Duration, recomputes int)
	IndicatorSet func(active int)
}

// Session is one open chart.
type Session struct {
	provider model.Provider
	engine   *indicator.Engine
	chart    *chart.Compositor
	hooks    Hooks

	mu        sync.Mutex // guards gen and cancel
	gen       uint64
	cancel    context.CancelFunc
	outcomes  chan FetchOutcome
	done      chan struct{}
	closeOnce sync.Once

	request    model.FetchRequest
	recomputes int
}

// New builds a session over provider. engine and compositor are owned by the
// session from here on.
func New(provider model.Provider, engine *indicator.Engine, compositor *chart.Compositor, hooks Hooks) *Session {
	return &Session{
		provider: provider,
		engine:   engine,
		chart:    compositor,
		hooks:    hooks,
		outcomes: make(chan FetchOutcome, 4),
		done:     make(chan struct{}),
	}
}

// Outcomes delivers completed fetches, including superseded ones.
func (s *Session) Outcomes() <-chan FetchOutcome { return s.outcomes }

// Request returns the request behind the loaded series.
func (s *Session) Request() model.FetchRequest { return s.request }

// Engine exposes the indicator registry.
func (s *Session) Engine() *indicator.Engine { return s.engine }

// Chart exposes the compositor.
func (s *Session) Chart() *chart.Compositor { return s.chart }

// RequestFetch validates req and starts fetching it. Any in-flight fetch is
// cancelled and its outcome will be discarded. It returns the generation
// that a matching Deliver will apply.
func (s *Session) RequestFetch(ctx context.Context, req model.FetchRequest) (uint64, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return 0, &model.FetchError{Ticker: req.Ticker, Period: req.Period, Interval: req.Interval, Err: err}
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	fctx, cancel := context.WithCancel(logger.WithRequestID(ctx, logger.NewRequestID(req.Ticker, time.Now())))
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		start := time.Now()
		series, err := s.provider.Fetch(fctx, req)
		cancel()
		out := FetchOutcome{
			Generation: gen,
			Request:    req,
			Series:     series,
			Err:        err,
			Took:       time.Since(start),
			ctx:        fctx,
		}
		select {
		case s.outcomes <- out:
		case <-s.done:
		}
	}()
	return gen, nil
}

// Latest returns the generation of the newest fetch request.
func (s *Session) Latest() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Deliver applies a fetch outcome. Outcomes older than the latest request are
// dropped and reported as not applied. A failed fetch leaves the chart as it
// was and returns the error wrapped in a *model.FetchError.
func (s *Session) Deliver(out FetchOutcome) (bool, error) {
	ctx := out.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if out.Generation != s.Latest() {
		slog.Debug("discarding superseded fetch", append(logger.Attrs(ctx),
			"ticker", out.Request.Ticker, "generation", out.Generation)...)
		s.fetchDone("superseded", out)
		return false, nil
	}

	s.mu.Lock()
	s.cancel = nil
	s.mu.Unlock()

	if out.Err == nil && out.Series == nil {
		out.Err = errors.New("provider returned no series")
	}
	if out.Err != nil {
		s.fetchDone("error", out)
		var fe *model.FetchError
		if !errors.As(out.Err, &fe) {
			out.Err = &model.FetchError{Ticker: out.Request.Ticker, Period: out.Request.Period, Interval: out.Request.Interval, Err: out.Err}
		}
		slog.Warn("fetch failed", append(logger.Attrs(ctx), "error", out.Err)...)
		return false, out.Err
	}

	s.fetchDone("ok", out)
	s.Load(out.Request, out.Series)
	slog.Info("series loaded", append(logger.Attrs(ctx),
		"ticker", out.Series.Ticker(), "interval", out.Series.Interval(),
		"bars", out.Series.Len(), "indicators", s.engine.Len())...)
	return true, nil
}

// Load swaps in series directly: every indicator is recomputed against it and
// the view is reset to the full range.
func (s *Session) Load(req model.FetchRequest, series *model.BarSeries) {
	s.request = req
	s.engine.RecomputeAll(series)
	s.chart.Open(series)
	for _, res := range s.engine.List() {
		// Placement is always resolved after Normalize, so Attach cannot fail.
		_ = s.chart.Attach(res.ID, res, res.Spec.Placement)
	}
}

func (s *Session) fetchDone(result string, out FetchOutcome) {
	if s.hooks.FetchDone != nil {
		s.hooks.FetchDone(result, out.Took, out.Series.Len())
	}
}

// AddIndicator registers spec and attaches its result. On error nothing
// changes.
func (s *Session) AddIndicator(spec indicator.Spec) (string, error) {
	id, err := s.engine.Add(spec)
	if err != nil {
		return "", err
	}
	s.attach(id)
	s.indicatorSet()
	return id, nil
}

// UpdateIndicator reconfigures an indicator in place.
func (s *Session) UpdateIndicator(id string, params map[string]float64) error {
	if _, err := s.engine.Update(id, params); err != nil {
		return err
	}
	s.attach(id)
	return nil
}

// RemoveIndicator drops an indicator and its panel.
func (s *Session) RemoveIndicator(id string) error {
	if err := s.engine.Remove(id); err != nil {
		return err
	}
	if s.chart.IsOpen() {
		if err := s.chart.Detach(id); err != nil && !errors.Is(err, chart.ErrUnknownPanel) {
			return err
		}
	}
	s.indicatorSet()
	return nil
}

func (s *Session) attach(id string) {
	if !s.chart.IsOpen() {
		return
	}
	res, _ := s.engine.Result(id)
	_ = s.chart.Attach(id, res, res.Spec.Placement)
}

func (s *Session) indicatorSet() {
	if s.hooks.IndicatorSet != nil {
		s.hooks.IndicatorSet(s.engine.Len())
	}
}

func (s *Session) Pan(pixelDelta float64) error { return s.chart.Pan(pixelDelta) }

func (s *Session) Zoom(factor, anchorPixel float64) error {
	return s.chart.Zoom(factor, anchorPixel)
}

func (s *Session) SetViewport(r render.Range) error { return s.chart.SetViewport(r) }

func (s *Session) SetTimeRange(from, to time.Time) error { return s.chart.SetTimeRange(from, to) }

func (s *Session) Reset() error { return s.chart.Reset() }

func (s *Session) Inspect(pixelX float64) (chart.Inspection, bool) { return s.chart.Inspect(pixelX) }

// Frame renders the current state.
func (s *Session) Frame() chart.Frame {
	start := time.Now()
	f := s.chart.Render()
	if s.hooks.Rendered != nil {
		n := s.chart.Recomputes()
		s.hooks.Rendered(time.Since(start), n-s.recomputes)
		s.recomputes = n
	}
	return f
}

// Close cancels any in-flight fetch and tears the chart down.
func (s *Session) Close() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.done) })
	s.chart.Close()
	if s.engine.Len() > 0 {
		s.engine.Clear()
		s.indicatorSet()
	}
}
