package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"candlechart/internal/chart"
	"candlechart/internal/render"
	"candlechart/internal/session"
)

// Client is a single websocket peer and the chart it drives.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	events chan Event
	quit   chan struct{}
	hub    *Hub
	cancel context.CancelFunc

	// owned by run
	session *session.Session
	pending map[uint64]string // fetch generation -> req_id
}

// run is the only goroutine that touches the session.
func (c *Client) run(ctx context.Context) {
	defer func() {
		c.session.Close()
		c.hub.RemoveClient(c)
		close(c.quit)
	}()

	c.pending = make(map[uint64]string)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.events:
			if !ok {
				return
			}
			c.hub.countEvent(ev.Type)
			c.handle(ctx, ev)
		case out := <-c.session.Outcomes():
			reqID := c.pending[out.Generation]
			delete(c.pending, out.Generation)
			applied, err := c.session.Deliver(out)
			if err != nil {
				c.sendError(reqID, err)
				continue
			}
			if applied {
				c.sendFrame(reqID)
			}
		}
	}
}

func (c *Client) handle(ctx context.Context, ev Event) {
	var err error
	switch ev.Type {
	case EventLoad:
		var gen uint64
		gen, err = c.session.RequestFetch(ctx, ev.Request())
		if err == nil {
			c.pending[gen] = ev.ReqID
			return
		}
	case EventPan:
		err = c.session.Pan(ev.Delta)
	case EventZoom:
		err = c.session.Zoom(ev.Factor, ev.Anchor)
	case EventSetViewport:
		err = c.session.SetViewport(render.Range{Start: ev.Start, End: ev.End})
	case EventSetRange:
		err = c.session.SetTimeRange(ev.From, ev.To)
	case EventReset:
		err = c.session.Reset()
	case EventAddIndicator:
		spec, serr := ev.Spec()
		if serr != nil {
			err = serr
			break
		}
		var id string
		if id, err = c.session.AddIndicator(spec); err == nil {
			c.sendFrameWith(ev.ReqID, id)
			return
		}
	case EventUpdateIndicator:
		err = c.session.UpdateIndicator(ev.ID, ev.Params)
	case EventRemoveIndicator:
		err = c.session.RemoveIndicator(ev.ID)
	case EventInspect:
		// A miss still gets a reply so the client can clear its crosshair.
		var hit *chart.Inspection
		if in, ok := c.session.Inspect(ev.X); ok {
			hit = &in
		}
		c.enqueue(Message{Type: MsgInspect, ReqID: ev.ReqID, Inspection: hit})
		return
	case EventFrame:
	default:
		err = unknownEvent(ev.Type)
	}
	if err != nil {
		c.sendError(ev.ReqID, err)
		return
	}
	c.sendFrame(ev.ReqID)
}

func (c *Client) sendFrame(reqID string) { c.sendFrameWith(reqID, "") }

func (c *Client) sendFrameWith(reqID, indicatorID string) {
	start := time.Now()
	f := c.session.Frame()
	c.hub.Latency.Record(float64(time.Since(start).Microseconds()) / 1000.0)
	if c.enqueue(Message{Type: MsgFrame, ReqID: reqID, Frame: &f, Indicator: indicatorID}) {
		c.hub.countFrame()
	}
}

func (c *Client) sendError(reqID string, err error) {
	slog.Debug("ws event failed", "req_id", reqID, "error", err)
	c.enqueue(Message{Type: MsgError, ReqID: reqID, Error: errorBody(err)})
}

// enqueue queues msg for the write pump. A client that stops reading loses
// messages rather than stalling its chart.
func (c *Client) enqueue(msg Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal ws message", "type", msg.Type, "error", err)
		return false
	}
	select {
	case c.send <- data:
		return true
	case <-c.quit:
		return false
	default:
		slog.Warn("ws send queue full, dropping message", "type", msg.Type)
		return false
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.quit:
			c.conn.SetWriteDeadline(time.Now().Add(time.Second))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			// Coalesce queued messages into one frame, newline separated.
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		close(c.events)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(8192)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("ws read failed", "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			c.enqueue(Message{Type: MsgError, Error: &ErrorBody{Code: "bad_request", Message: "invalid event: " + err.Error()}})
			continue
		}
		select {
		case c.events <- ev:
		case <-c.quit:
			return
		}
	}
}
