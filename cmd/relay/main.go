package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drawroom/drawroom/canvas-go/internal/auth"
	"github.com/drawroom/drawroom/canvas-go/internal/config"
	"github.com/drawroom/drawroom/canvas-go/internal/relay"
)

func main() {
	cfg, err := config.LoadRelay()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: config.Level(cfg.LogLevel)})))

	store := relay.NewStore()
	hub := relay.NewHub(store)
	go hub.Run()

	issuer := auth.NewIssuer(cfg.JWTSecret)
	server := relay.NewServer(hub, store, issuer, cfg.Origins(), cfg.DevTokens)

	addr := fmt.Sprintf(":%d", cfg.Port)
	// Hijacked websocket connections keep any deadline the server sets, so
	// only the header read is bounded.
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down relay")
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("relay starting", "addr", addr, "devTokens", cfg.DevTokens)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
