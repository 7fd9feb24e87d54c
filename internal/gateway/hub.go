// Package gateway serves interactive charts over websockets. Each connected
// client drives its own session; the hub only tracks clients and fans out
// status messages.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"candlechart/internal/chart"
	"candlechart/internal/indicator"
	"candlechart/internal/metrics"
	"candlechart/internal/model"
	"candlechart/internal/session"
)

// SessionFactory builds a fresh session for one chart.
type SessionFactory func() *session.Session

// Hub manages websocket clients.
type Hub struct {
	newSession SessionFactory
	metrics    *metrics.Metrics

	mu      sync.RWMutex
	clients map[*Client]bool

	// Frame build latency, reported in status messages.
	Latency *LatencyTracker

	Broadcaster *Broadcaster

	// OnClients, when set, receives the client count after each change.
	OnClients func(n int)
}

// NewHub creates a hub. m may be nil.
func NewHub(newSession SessionFactory, m *metrics.Metrics) *Hub {
	h := &Hub{
		newSession: newSession,
		metrics:    m,
		clients:    make(map[*Client]bool),
		Latency:    NewLatencyTracker(10000),
	}
	h.Broadcaster = NewBroadcaster(h)
	return h
}

// Serve registers conn as a client and starts its pumps and event loop.
func (h *Hub) Serve(conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		conn:    conn,
		send:    make(chan []byte, 64),
		events:  make(chan Event, 16),
		quit:    make(chan struct{}),
		hub:     h,
		session: h.newSession(),
		cancel:  cancel,
	}

	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.setClients(count)

	slog.Info("ws client connected", "clients", count)

	go client.writePump()
	go client.readPump()
	go client.run(ctx)
	return client
}

// RemoveClient unregisters a client. It is safe to call more than once.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.setClients(count)
		slog.Info("ws client disconnected", "clients", count)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.cancel()
	}
}

func (h *Hub) setClients(n int) {
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(n))
	}
	if h.OnClients != nil {
		h.OnClients(n)
	}
}

func (h *Hub) countEvent(t string) {
	if h.metrics != nil {
		h.metrics.WSEvents.WithLabelValues(t).Inc()
	}
}

func (h *Hub) countFrame() {
	if h.metrics != nil {
		h.metrics.FramesSent.Inc()
	}
}

// Snapshot renders one chart synchronously: it fetches req through a
// throwaway session, adds specs and returns the full-range frame.
func (h *Hub) Snapshot(ctx context.Context, req model.FetchRequest, specs []indicator.Spec) (chart.Frame, error) {
	s := h.newSession()
	defer s.Close()

	for _, spec := range specs {
		if _, err := s.AddIndicator(spec); err != nil {
			return chart.Frame{}, err
		}
	}
	gen, err := s.RequestFetch(ctx, req)
	if err != nil {
		return chart.Frame{}, err
	}
	for {
		select {
		case out := <-s.Outcomes():
			if out.Generation != gen {
				continue
			}
			if _, err := s.Deliver(out); err != nil {
				return chart.Frame{}, err
			}
			return s.Frame(), nil
		case <-ctx.Done():
			return chart.Frame{}, ctx.Err()
		}
	}
}

// StartStatusBroadcast sends runtime stats to all clients every interval.
func (h *Hub) StartStatusBroadcast(ctx context.Context, start time.Time, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := CollectStatus(start)
			st.Clients = h.ClientCount()
			st.FrameP50, st.FrameP95, st.FrameP99 = h.Latency.Percentiles()
			envelope, err := json.Marshal(Message{Type: MsgStatus, Status: &st})
			if err != nil {
				slog.Error("marshal status", "error", err)
				continue
			}
			h.Broadcaster.Broadcast(envelope)
		}
	}
}
