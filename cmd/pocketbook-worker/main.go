// pocketbook-worker consumes AMQP sync triggers and drains the shared outbox
// to the remote document store, independently of the API process.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pocketbook/internal/amqp"
	"pocketbook/internal/config"
	"pocketbook/internal/connectivity"
	applog "pocketbook/internal/log"
	"pocketbook/internal/remote"
	rfirestore "pocketbook/internal/remote/firestore"
	rmemory "pocketbook/internal/remote/memory"
	"pocketbook/internal/storage"
	appsync "pocketbook/internal/sync"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	logger.Info("Starting pocketbook-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite store", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var docs remote.DocumentStore
	switch cfg.RemoteBackend {
	case "firestore":
		docs, err = rfirestore.New(ctx, cfg.FirestoreProjectID, cfg.FirestoreDatabaseID, cfg.GoogleCredsFile)
		if err != nil {
			logger.Error("Failed to initialize Firestore client", "error", err)
			os.Exit(1)
		}
	default:
		docs = rmemory.New()
		logger.Info("Using memory remote backend - pushed data will not persist")
	}

	syncer := appsync.NewEngine(store, docs)
	if err := syncer.Start(ctx); err != nil {
		logger.Error("Failed to start sync engine", "error", err)
		os.Exit(1)
	}
	defer syncer.Stop(context.Background())

	watcher := connectivity.New(cfg.ProbeURL, cfg.ProbeInterval, syncer.TriggerSync)
	if err := watcher.Start(ctx); err != nil {
		logger.Error("Failed to start connectivity watcher", "error", err)
		os.Exit(1)
	}
	defer watcher.Stop(context.Background())

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		go func() {
			err := amqpClient.ConsumeSyncRequests(ctx, func(msg *amqp.SyncRequestMessage) error {
				slog.InfoContext(ctx, "Sync request received",
					"reason", msg.Reason,
					"loan_id", msg.LoanID)
				syncer.TriggerSync()
				return nil
			})
			if err != nil && err != context.Canceled {
				logger.Error("Message consumption failed", "error", err)
				cancel()
			}
		}()
	} else {
		logger.Info("AMQP disabled - syncing on connectivity events only")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := syncer.Stop(shutdownCtx); err != nil {
		logger.Warn("Sync engine stop timed out", "error", err)
	}
	logger.Info("Worker shutdown complete")
}
