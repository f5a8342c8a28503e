package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradewatch/internal/api"
	"tradewatch/internal/config"
	"tradewatch/internal/database"
	"tradewatch/internal/logger"
	"tradewatch/internal/notify"
	"tradewatch/internal/quote"
	"tradewatch/internal/trades"
	"tradewatch/internal/watcher"

	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database
	db, err := database.NewDatabase(&cfg, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")
	store := database.NewStore(db)

	prices := quote.NewRestClient(&cfg.Quote, log)
	notifier := notify.New(&cfg.Notifier, log)

	engine := watcher.NewEngine(log, &cfg, prices, notifier, store)
	service := trades.NewService(store, log, cfg.Alerts.DefaultThreshold)

	server := api.NewAPIServer(cfg.Server.Port, service, engine, store, log)
	server.Start()

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Blocks until the context is cancelled
	engine.Run(ctx)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("API server shutdown failed", zap.Error(err))
	}
	log.Info("Tradewatch has been shut down.")
}
