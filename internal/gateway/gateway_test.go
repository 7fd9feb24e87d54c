package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candlechart/internal/chart"
	"candlechart/internal/export"
	"candlechart/internal/indicator"
	"candlechart/internal/metrics"
	"candlechart/internal/model"
	"candlechart/internal/render"
	"candlechart/internal/session"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func testProvider(t *testing.T) model.Provider {
	return model.ProviderFunc(func(ctx context.Context, req model.FetchRequest) (*model.BarSeries, error) {
		if req.Ticker == "DOWN" {
			return nil, errors.New("upstream unavailable")
		}
		rows := make([]model.Bar, 30)
		for i := range rows {
			p := 40 + float64(i%6)
			rows[i] = model.Bar{TS: t0.AddDate(0, 0, i), Open: p, High: p + 2, Low: p - 1, Close: p + 1, Volume: float64(500 + i)}
		}
		return model.NewBarSeries(req.Ticker, req.Interval, rows)
	})
}

func newTestHub(t *testing.T) (*Hub, *prometheus.Registry, *httptest.Server) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.NewMetricsWith(reg)
	p := testProvider(t)
	hub := NewHub(func() *session.Session {
		return session.New(p, indicator.NewEngine(1000), chart.NewCompositor(chart.DefaultLayout(), render.DefaultOptions()), session.Hooks{})
	}, m)

	mux := http.NewServeMux()
	RegisterRoutes(mux, hub, export.DefaultPalette(), 5*time.Second)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, reg, srv
}

// wsConn reads newline-coalesced messages one at a time.
type wsConn struct {
	t     *testing.T
	conn  *websocket.Conn
	queue [][]byte
}

func dial(t *testing.T, srv *httptest.Server) *wsConn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &wsConn{t: t, conn: conn}
}

func (c *wsConn) send(ev Event) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(ev))
}

// next returns the next message, skipping status broadcasts.
func (c *wsConn) next() Message {
	c.t.Helper()
	for {
		for len(c.queue) == 0 {
			c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
			_, data, err := c.conn.ReadMessage()
			require.NoError(c.t, err)
			c.queue = bytes.Split(data, []byte{'\n'})
		}
		raw := c.queue[0]
		c.queue = c.queue[1:]
		var msg Message
		require.NoError(c.t, json.Unmarshal(raw, &msg))
		if msg.Type != MsgStatus {
			return msg
		}
	}
}

func TestGateway_LoadAndIndicators(t *testing.T) {
	_, reg, srv := newTestHub(t)
	c := dial(t, srv)

	c.send(Event{Type: EventLoad, ReqID: "r1", Ticker: "aapl", Period: model.Period1y, Interval: model.Interval1d})
	msg := c.next()
	require.Equal(t, MsgFrame, msg.Type, "error: %+v", msg.Error)
	assert.Equal(t, "r1", msg.ReqID)
	require.NotNil(t, msg.Frame)
	assert.Equal(t, "AAPL", msg.Frame.Ticker)
	assert.Equal(t, 30, msg.Frame.Bars)
	assert.Len(t, msg.Frame.Panels, 2)
	assert.Equal(t, render.Range{Start: 0, End: 30}, msg.Frame.Range)

	c.send(Event{Type: EventAddIndicator, ReqID: "r2", Kind: "rsi", Window: 14})
	msg = c.next()
	require.Equal(t, MsgFrame, msg.Type, "error: %+v", msg.Error)
	assert.Equal(t, "rsi_14", msg.Indicator)
	require.Len(t, msg.Frame.Panels, 3)
	assert.Equal(t, chart.PanelSubplot, msg.Frame.Panels[2].Kind)

	c.send(Event{Type: EventAddIndicator, ReqID: "r3", Kind: "rsi", Window: 14})
	msg = c.next()
	require.Equal(t, MsgError, msg.Type)
	assert.Equal(t, "duplicate_indicator", msg.Error.Code)

	c.send(Event{Type: EventZoom, Factor: 2, Anchor: 600})
	msg = c.next()
	require.Equal(t, MsgFrame, msg.Type)
	assert.Equal(t, 15, msg.Frame.Range.Len())
	for _, p := range msg.Frame.Panels {
		assert.Equal(t, msg.Frame.Range, p.Range)
	}

	c.send(Event{Type: EventInspect, ReqID: "i1", X: 1})
	msg = c.next()
	require.Equal(t, MsgInspect, msg.Type)
	require.NotNil(t, msg.Inspection)
	// zoomed view is [7, 22) at 80px per bar
	assert.Equal(t, 7, msg.Inspection.Index)

	c.send(Event{Type: EventRemoveIndicator, ID: "rsi_14"})
	msg = c.next()
	require.Equal(t, MsgFrame, msg.Type)
	assert.Len(t, msg.Frame.Panels, 2)

	c.send(Event{Type: EventReset})
	msg = c.next()
	assert.Equal(t, 30, msg.Frame.Range.Len())

	assert.Equal(t, 7.0, sample(t, reg, "chart_ws_events_total"))
	require.Eventually(t, func() bool { return sample(t, reg, "chart_frames_sent_total") == 5 }, 2*time.Second, 10*time.Millisecond)
}

func TestGateway_Errors(t *testing.T) {
	_, _, srv := newTestHub(t)
	c := dial(t, srv)

	tests := []struct {
		ev   Event
		code string
	}{
		{Event{Type: "frobnicate"}, "unknown_event"},
		{Event{Type: EventPan, Delta: 10}, "not_open"},
		{Event{Type: EventLoad, Ticker: " "}, "invalid_request"},
		{Event{Type: EventLoad, Ticker: "X", Period: model.Period1d, Interval: model.Interval1mo}, "invalid_request"},
		{Event{Type: EventAddIndicator, Kind: "macd"}, "unsupported_indicator"},
		{Event{Type: EventAddIndicator, Kind: "sma", Window: 0, Params: map[string]float64{"window": -3}}, "invalid_parameter"},
		{Event{Type: EventRemoveIndicator, ID: "nope"}, "unknown_indicator"},
		{Event{Type: EventLoad, ReqID: "down", Ticker: "down"}, "fetch_error"},
	}
	for _, tt := range tests {
		c.send(tt.ev)
		msg := c.next()
		require.Equal(t, MsgError, msg.Type, "event %+v", tt.ev)
		assert.Equal(t, tt.code, msg.Error.Code, "event %+v: %s", tt.ev, msg.Error.Message)
		assert.Equal(t, tt.ev.ReqID, msg.ReqID)
	}

	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg := c.next()
	require.Equal(t, MsgError, msg.Type)
	assert.Equal(t, "bad_request", msg.Error.Code)
}

func TestGateway_ClientTracking(t *testing.T) {
	hub, reg, srv := newTestHub(t)

	a := dial(t, srv)
	b := dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2.0, sample(t, reg, "chart_ws_clients"))

	assert.Equal(t, 2, hub.Broadcaster.Broadcast([]byte(`{"type":"status","status":{"clients":2}}`)))
	a.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := a.conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"clients":2`)

	b.conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1.0, sample(t, reg, "chart_ws_clients"))
}

// sample sums every series of the named metric family.
func sample(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetGauge().GetValue() + m.GetCounter().GetValue()
		}
	}
	return total
}

func TestSnapshot(t *testing.T) {
	hub, _, _ := newTestHub(t)
	specs, err := ParseIndicators("sma:5, rsi")
	require.NoError(t, err)

	f, err := hub.Snapshot(context.Background(), model.FetchRequest{Ticker: "msft"}, specs)
	require.NoError(t, err)
	assert.Equal(t, "MSFT", f.Ticker)
	require.Len(t, f.Panels, 3)
	_, ok := f.Panel(chart.PanelSubplot, "rsi_14")
	assert.True(t, ok)

	_, err = hub.Snapshot(context.Background(), model.FetchRequest{Ticker: "down"}, nil)
	var fe *model.FetchError
	assert.ErrorAs(t, err, &fe)
}

func TestREST(t *testing.T) {
	_, _, srv := newTestHub(t)

	get := func(path string) (*http.Response, []byte) {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, body
	}

	resp, body := get("/api/chart?ticker=aapl&indicators=sma:5&format=svg")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "<svg")

	resp, _ = get("/api/chart?ticker=aapl")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	for _, path := range []string{
		"/api/chart?ticker=",
		"/api/chart?ticker=aapl&indicators=foo",
		"/api/chart?ticker=aapl&indicators=sma:x",
		"/api/chart?ticker=aapl&format=gif",
	} {
		resp, _ = get(path)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}

	resp, _ = get("/api/chart?ticker=down")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp, body = get("/api/indicators")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var infos []IndicatorInfo
	require.NoError(t, json.Unmarshal(body, &infos))
	require.Len(t, infos, len(indicator.Kinds))
	assert.Equal(t, IndicatorInfo{Kind: indicator.KindRSI, Window: 14, Placement: indicator.PlacementSubplot}, infos[3])

	resp, body = get("/api/intervals")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"default_period":"1y"`)
}
