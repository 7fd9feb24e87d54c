package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestInitWriter_JSONWithService(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	InitWriter(&buf, "chartd", slog.LevelInfo)
	slog.Debug("hidden")
	slog.Info("loaded", "bars", 5)

	line := strings.TrimSpace(buf.String())
	if strings.Contains(line, "hidden") {
		t.Fatalf("debug line leaked at info level: %s", line)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", line, err)
	}
	if rec["service"] != "chartd" || rec["msg"] != "loaded" || rec["bars"] != float64(5) {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestID_RoundTrip(t *testing.T) {
	ctx := context.Background()

	if id := RequestID(ctx); id != "" {
		t.Errorf("expected empty request id, got %q", id)
	}
	if attrs := Attrs(ctx); attrs != nil {
		t.Errorf("expected nil attrs without request id, got %v", attrs)
	}

	ctx = WithRequestID(ctx, "AAPL-1")
	if id := RequestID(ctx); id != "AAPL-1" {
		t.Errorf("expected 'AAPL-1', got %q", id)
	}
	if attrs := Attrs(ctx); len(attrs) != 1 {
		t.Errorf("expected one attr, got %v", attrs)
	}
}

func TestNewRequestID(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 123456789, time.UTC)
	id := NewRequestID("MSFT", ts)

	if !strings.HasPrefix(id, "MSFT-") {
		t.Errorf("expected id to start with 'MSFT-', got %s", id)
	}
	if !strings.HasSuffix(id, "123456789") {
		t.Errorf("expected id to end with the nano timestamp, got %s", id)
	}
}

func TestFromContext(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	InitWriter(&buf, "chartd", slog.LevelInfo)
	FromContext(WithRequestID(context.Background(), "TSLA-42")).Info("fetch done")

	if !strings.Contains(buf.String(), `"request_id":"TSLA-42"`) {
		t.Errorf("request id missing: %s", buf.String())
	}
}
