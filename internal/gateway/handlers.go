package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"candlechart/internal/export"
	"candlechart/internal/indicator"
	"candlechart/internal/logger"
	"candlechart/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// IndicatorInfo describes one indicator kind for menus.
type IndicatorInfo struct {
	Kind      indicator.Kind      `json:"kind"`
	Window    int                 `json:"default_window"`
	Placement indicator.Placement `json:"placement"`
}

// RegisterRoutes registers the websocket and REST routes on mux.
func RegisterRoutes(mux *http.ServeMux, hub *Hub, palette export.Palette, exportTimeout time.Duration) {
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("ws upgrade failed", "error", err)
			return
		}
		hub.Serve(conn)
	})

	// REST: supported periods and their allowed intervals
	mux.HandleFunc("/api/intervals", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		allowed := make(map[model.Period][]model.Interval, len(model.Periods))
		for _, p := range model.Periods {
			allowed[p] = model.AllowedIntervals(p)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"periods":          model.Periods,
			"intervals":        model.Intervals,
			"allowed":          allowed,
			"default_period":   model.DefaultPeriod,
			"default_interval": model.DefaultInterval,
		})
	})

	// REST: indicator kinds with their defaults
	mux.HandleFunc("/api/indicators", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		infos := make([]IndicatorInfo, 0, len(indicator.Kinds))
		for _, k := range indicator.Kinds {
			spec, err := indicator.Spec{Kind: k}.Normalize(0)
			if err != nil {
				continue
			}
			infos = append(infos, IndicatorInfo{Kind: k, Window: spec.Window(), Placement: spec.Placement})
		}
		writeJSON(w, http.StatusOK, infos)
	})

	// REST: one-shot chart image
	// GET /api/chart?ticker=AAPL&period=1y&interval=1d&indicators=sma:20,rsi:14&format=svg
	mux.HandleFunc("/api/chart", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		q := r.URL.Query()
		format, err := export.ParseFormat(q.Get("format"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		specs, err := ParseIndicators(q.Get("indicators"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req, err := model.ValidateRequest(q.Get("ticker"), model.Period(q.Get("period")), model.Interval(q.Get("interval")))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), exportTimeout)
		defer cancel()
		frame, err := hub.Snapshot(ctx, req, specs)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}

		var buf bytes.Buffer
		if err := export.Write(&buf, frame, format, palette); err != nil {
			slog.Error("chart export failed", append(logger.Attrs(ctx), "error", err)...)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", format.ContentType())
		w.Write(buf.Bytes())
	})
}

// ParseIndicators parses "sma:20,rsi" into specs. A missing window takes
// the kind's default.
func ParseIndicators(s string) ([]indicator.Spec, error) {
	var specs []indicator.Spec
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, win, hasWin := strings.Cut(part, ":")
		kind, err := indicator.ParseKind(name)
		if err != nil {
			return nil, err
		}
		spec := indicator.Spec{Kind: kind}
		if hasWin {
			n, err := strconv.Atoi(win)
			if err != nil {
				return nil, &indicator.InvalidParameterError{Kind: kind, Param: indicator.ParamWindow, Reason: "not an integer"}
			}
			spec.Params = map[string]float64{indicator.ParamWindow: float64(n)}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func statusFor(err error) int {
	var fetchErr *model.FetchError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody(err))
}
