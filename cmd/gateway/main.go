package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/payflowhq/payflow/internal/config"
	"github.com/payflowhq/payflow/internal/gateway"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting edge gateway",
		"port", cfg.Gateway.Port,
		"routes", len(cfg.Gateway.Routes),
	)

	verifier, err := gateway.NewTokenVerifier(cfg.Gateway.JWTPublicKeyPath)
	if err != nil {
		logger.Error("failed to load token verifier", "error", err)
		os.Exit(1)
	}

	proxy, err := gateway.NewProxy(cfg.Gateway.Routes, cfg.Gateway.UpstreamTimeout, logger)
	if err != nil {
		logger.Error("failed to build routes", "error", err)
		os.Exit(1)
	}

	filter := gateway.NewAuthFilter(verifier, logger)
	handler := filter.Middleware(proxy)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Gateway.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("gateway listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gateway...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("gateway forced to shutdown", "error", err)
	}

	logger.Info("gateway exited")
}
