// Package httpfeed fetches OHLCV time series over HTTP from a Twelve
// Data style /time_series endpoint.
package httpfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"candlechart/internal/logger"
	"candlechart/internal/model"
)

// ErrUnsupportedInterval is returned for intervals the feed has no
// equivalent for.
var ErrUnsupportedInterval = errors.New("interval not served by feed")

// Config for the feed client.
type Config struct {
	BaseURL string
	APIKey  string
	// OutputSize caps rows per request; the API maximum is 5000.
	OutputSize int
}

// timeSeriesResponse is the /time_series wire shape. Numbers arrive as
// strings.
type timeSeriesResponse struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Values  []struct {
		Datetime string `json:"datetime"`
		Open     string `json:"open"`
		High     string `json:"high"`
		Low      string `json:"low"`
		Close    string `json:"close"`
		Volume   string `json:"volume"`
	} `json:"values"`
}

var feedIntervals = map[model.Interval]string{
	model.Interval1m:  "1min",
	model.Interval5m:  "5min",
	model.Interval15m: "15min",
	model.Interval30m: "30min",
	model.Interval60m: "1h",
	model.Interval1h:  "1h",
	model.Interval1d:  "1day",
	model.Interval1wk: "1week",
	model.Interval1mo: "1month",
}

// Provider implements model.Provider.
type Provider struct {
	cfg    Config
	client *http.Client
	now    func() time.Time
}

func New(cfg Config, client *http.Client) *Provider {
	if cfg.OutputSize <= 0 || cfg.OutputSize > 5000 {
		cfg.OutputSize = 5000
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Provider{cfg: cfg, client: client, now: time.Now}
}

// Fetch retrieves req and builds a validated series. Transport and upstream
// failures come back as *model.FetchError; rows breaking bar invariants as
// *model.InvalidDataError.
func (p *Provider) Fetch(ctx context.Context, req model.FetchRequest) (*model.BarSeries, error) {
	fail := func(err error) error {
		return &model.FetchError{Ticker: req.Ticker, Period: req.Period, Interval: req.Interval, Err: err}
	}

	iv, ok := feedIntervals[req.Interval]
	if !ok {
		return nil, fail(fmt.Errorf("%s: %w", req.Interval, ErrUnsupportedInterval))
	}

	q := url.Values{}
	q.Set("symbol", req.Ticker)
	q.Set("interval", iv)
	q.Set("outputsize", strconv.Itoa(p.cfg.OutputSize))
	q.Set("order", "ASC")
	q.Set("apikey", p.cfg.APIKey)
	if start, ok := req.Period.Start(p.now()); ok {
		q.Set("start_date", start.Format("2006-01-02"))
	}
	u := fmt.Sprintf("%s/time_series?%s", strings.TrimRight(p.cfg.BaseURL, "/"), q.Encode())

	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fail(err)
	}
	res, err := p.client.Do(hreq)
	if err != nil {
		return nil, fail(err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return nil, fail(fmt.Errorf("feed http %d", res.StatusCode))
	}

	var body timeSeriesResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fail(fmt.Errorf("decode: %w", err))
	}
	if body.Status == "error" {
		if isNoData(body.Message) {
			return model.NewBarSeries(req.Ticker, req.Interval, nil)
		}
		return nil, fail(fmt.Errorf("feed: %s", body.Message))
	}

	bars := make([]model.Bar, 0, len(body.Values))
	for _, v := range body.Values {
		tm, err := parseTime(v.Datetime)
		if err != nil {
			return nil, fail(err)
		}
		var b model.Bar
		b.TS = tm
		for _, f := range []struct {
			name string
			raw  string
			dst  *float64
		}{
			{"open", v.Open, &b.Open},
			{"high", v.High, &b.High},
			{"low", v.Low, &b.Low},
			{"close", v.Close, &b.Close},
			{"volume", v.Volume, &b.Volume},
		} {
			if f.raw == "" && f.name == "volume" {
				// FX and index symbols carry no volume
				continue
			}
			d, err := decimal.NewFromString(f.raw)
			if err != nil {
				return nil, fail(fmt.Errorf("parse %s %q: %w", f.name, f.raw, err))
			}
			*f.dst = d.InexactFloat64()
		}
		bars = append(bars, b)
	}
	// Older API versions ignore order=ASC and return newest first.
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].TS.Before(bars[j].TS) })

	series, err := model.NewBarSeries(req.Ticker, req.Interval, bars)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debug("feed fetch done", "ticker", req.Ticker, "bars", series.Len())
	return series, nil
}

func isNoData(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "no data")
}

func parseTime(s string) (time.Time, error) {
	tm, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		tm, err = time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
		}
	}
	return tm, nil
}
