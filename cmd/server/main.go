package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledger/internal/config"
	"ledger/internal/db"
	"ledger/internal/events"
	"ledger/internal/handlers"
	"ledger/internal/logging"
	"ledger/internal/metrics"
	"ledger/internal/services"
	"ledger/internal/store"
	"ledger/internal/websocket"

	"go.uber.org/zap"
)

type publisher interface {
	services.EventPublisher
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	defer database.Close()

	accounts := store.NewAccountStore(database)
	ledger := store.NewLedgerStore()
	transfers := store.NewTransferStore()
	audit := store.NewAuditStore(database)
	clients := store.NewClientStore(database)
	reconcile := store.NewReconcileStore(database)
	txRunner := db.NewTxRunner(database, logger.Named("tx"))

	hub := websocket.NewHub()
	m := metrics.New()
	var eventPublisher publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		eventPublisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.Info("publishing ledger events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	defer func() {
		if err := eventPublisher.Close(); err != nil {
			logger.Warn("close event publisher", zap.Error(err))
		}
	}()
	observers := services.Observers{Hub: hub, Publisher: eventPublisher, Recorder: m}

	accountService := services.NewAccountService(txRunner, accounts, ledger, logger.Named("accounts"))
	postingService := services.NewPostingService(txRunner, accounts, ledger, audit, observers, logger.Named("postings"), cfg.TransferTimeout)
	transferService := services.NewTransferService(txRunner, accounts, ledger, transfers, audit, observers, logger.Named("transfers"), cfg.TransferTimeout)

	handler := handlers.New(cfg, logger.Named("http"), accountService, postingService, transferService, clients, audit, reconcile, hub, m)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.TransferTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("ledger API listening",
			zap.String("addr", server.Addr),
			zap.String("env", cfg.AppEnv),
			zap.Bool("auth_required", cfg.AuthRequired),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	sig := <-shutdown
	logger.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	hub.Close()
}
