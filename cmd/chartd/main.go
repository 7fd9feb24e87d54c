package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"candlechart/config"
	"candlechart/internal/app"
	"candlechart/internal/gateway"
	"candlechart/internal/logger"
	"candlechart/internal/metrics"
	"candlechart/internal/session"
)

var processStart = time.Now()

func main() {
	cfg := config.Load()
	logger.Init("chartd", logger.ParseLevel(cfg.LogLevel))
	slog.Info("starting", "http_addr", cfg.HTTPAddr, "metrics_addr", cfg.MetricsAddr)

	style, err := config.LoadStyle(cfg.StyleFile)
	if err != nil {
		slog.Error("style load failed", "file", cfg.StyleFile, "error", err)
		os.Exit(1)
	}

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus(cfg.RedisAddr != "")
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Data stack ----
	stack, err := app.Build(cfg, prom, health)
	if err != nil {
		slog.Error("init failed", "error", err)
		os.Exit(1)
	}
	defer stack.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stack.Run(ctx)

	// ---- Gateway ----
	hub := gateway.NewHub(func() *session.Session {
		return stack.NewSession(style, cfg.MaxIndicatorWindow)
	}, prom)
	hub.OnClients = health.SetWSClients
	go hub.StartStatusBroadcast(ctx, processStart, 2*time.Second)

	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, hub, style.Palette(), cfg.FeedTimeout+5*time.Second)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("serving", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			sigCh <- syscall.SIGTERM
		}
	}()

	<-sigCh
	slog.Info("shutting down")
	cancel()
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
}
