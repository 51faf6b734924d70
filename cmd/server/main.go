package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/payflowhq/payflow/internal/application"
	"github.com/payflowhq/payflow/internal/application/services"
	"github.com/payflowhq/payflow/internal/config"
	"github.com/payflowhq/payflow/internal/infrastructure/persistence/postgres"
	"github.com/payflowhq/payflow/internal/infrastructure/walletapi"
	"github.com/payflowhq/payflow/internal/interfaces/rest"
	"github.com/payflowhq/payflow/internal/interfaces/rest/handlers"
	"github.com/payflowhq/payflow/internal/provider"
	"github.com/payflowhq/payflow/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting payment service",
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()
	db, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	paymentRepo := postgres.NewPaymentRepository(db)
	walletRepo := postgres.NewWalletRepository(db)
	transactionRepo := postgres.NewWalletTransactionRepository(db)
	coordinator := postgres.NewTransactionCoordinator(db)

	walletService := services.NewWalletService(coordinator, walletRepo, transactionRepo, logger)

	// The orchestrator talks to the ledger through a port: in-process by
	// default, over HTTP when a remote wallet service is configured.
	var ledger application.WalletLedger = services.NewLocalLedger(walletService)
	if cfg.Wallet.BaseURL != "" {
		logger.Info("using remote wallet ledger", "base_url", cfg.Wallet.BaseURL)
		ledger = walletapi.NewClient(cfg.Wallet)
	}

	mockProvider := provider.NewMockProvider(provider.MockConfig{
		SuccessRate:  cfg.Provider.SuccessRate,
		MinLatencyMs: cfg.Provider.MinLatencyMs,
		MaxLatencyMs: cfg.Provider.MaxLatencyMs,
	})
	charger := provider.NewRetryingProvider(mockProvider, cfg.Retry.BaseDelay, cfg.Retry.MaxRetries)

	paymentService := services.NewPaymentService(
		coordinator,
		paymentRepo,
		ledger,
		charger,
		services.NewTokenVault(),
		logger,
	)

	h := handlers.NewHandlers(paymentService, walletService, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router := rest.NewRouter(h, registry, cfg.Server.ReadTimeout, logger)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	reconciler := worker.NewReconciler(
		transactionRepo,
		paymentRepo,
		ledger,
		paymentService,
		cfg.Worker.Interval,
		cfg.Worker.BatchSize,
		cfg.Worker.PendingAge,
		logger,
	)

	expirationWorker := worker.NewExpirationWorker(
		paymentRepo,
		cfg.Worker.Interval,
		cfg.Worker.BatchSize,
		cfg.Worker.PaymentTTL,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go reconciler.Start(workerCtx)
	go expirationWorker.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
