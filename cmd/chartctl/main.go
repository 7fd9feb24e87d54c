// Command chartctl renders one chart to an image file without a server.
//
//	chartctl -ticker AAPL -period 6mo -interval 1d -indicators sma:20,rsi:14 -o aapl.png
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"candlechart/config"
	"candlechart/internal/app"
	"candlechart/internal/export"
	"candlechart/internal/gateway"
	"candlechart/internal/logger"
	"candlechart/internal/metrics"
	"candlechart/internal/model"
	"candlechart/internal/session"
)

func main() {
	ticker := flag.String("ticker", "", "Ticker symbol (required)")
	period := flag.String("period", string(model.DefaultPeriod), "Lookback period: "+joinPeriods())
	interval := flag.String("interval", string(model.DefaultInterval), "Bar interval")
	indicators := flag.String("indicators", "", "Indicator specs: KIND[:WINDOW],... e.g. sma:20,rsi:14")
	out := flag.String("o", "", "Output file (default TICKER.FORMAT)")
	format := flag.String("format", "", "png or svg (default from -o extension, else png)")
	purge := flag.Bool("purge", false, "Drop cached series for the ticker before fetching")
	flag.Parse()

	cfg := config.Load()
	logger.Init("chartctl", logger.ParseLevel(cfg.LogLevel))

	if err := run(cfg, *ticker, *period, *interval, *indicators, *out, *format, *purge); err != nil {
		fmt.Fprintln(os.Stderr, "chartctl:", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, ticker, period, interval, indicators, out, format string, purge bool) error {
	req, err := model.ValidateRequest(ticker, model.Period(period), model.Interval(interval))
	if err != nil {
		return err
	}
	specs, err := gateway.ParseIndicators(indicators)
	if err != nil {
		return err
	}
	if format == "" && strings.HasSuffix(strings.ToLower(out), ".svg") {
		format = string(export.SVG)
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	if out == "" {
		out = req.Ticker + "." + string(f)
	}

	style, err := config.LoadStyle(cfg.StyleFile)
	if err != nil {
		return err
	}

	// A private registry keeps the one-shot run off the default one.
	prom := metrics.NewMetricsWith(prometheus.NewRegistry())
	stack, err := app.Build(cfg, prom, metrics.NewHealthStatus(cfg.RedisAddr != ""))
	if err != nil {
		return err
	}
	defer stack.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.FeedTimeout+10*time.Second)
	defer cancel()
	stack.Run(ctx)

	if purge && stack.Cache != nil {
		n, err := stack.Cache.Invalidate(ctx, req.Ticker)
		if err != nil {
			return fmt.Errorf("purge cache: %w", err)
		}
		slog.Info("cache purged", "ticker", req.Ticker, "keys", n)
	}

	hub := gateway.NewHub(func() *session.Session {
		return stack.NewSession(style, cfg.MaxIndicatorWindow)
	}, nil)
	frame, err := hub.Snapshot(ctx, req, specs)
	if err != nil {
		return err
	}

	file, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := export.Write(file, frame, f, style.Palette()); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	slog.Info("chart written", "file", out, "bars", frame.Bars, "panels", len(frame.Panels))
	return nil
}

func joinPeriods() string {
	names := make([]string, len(model.Periods))
	for i, p := range model.Periods {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
