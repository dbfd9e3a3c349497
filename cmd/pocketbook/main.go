package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pocketbook/internal/amqp"
	"pocketbook/internal/blob"
	"pocketbook/internal/config"
	"pocketbook/internal/connectivity"
	apphttp "pocketbook/internal/http"
	"pocketbook/internal/invoice"
	"pocketbook/internal/ledger"
	applog "pocketbook/internal/log"
	"pocketbook/internal/recurrence"
	"pocketbook/internal/remote"
	rfirestore "pocketbook/internal/remote/firestore"
	rmemory "pocketbook/internal/remote/memory"
	"pocketbook/internal/storage"
	appsync "pocketbook/internal/sync"
)

// loanNotifier fans a loan-added event out to the local sync engine and, when
// configured, the AMQP exchange so the worker syncs too.
type loanNotifier struct {
	syncer *appsync.Engine
	mq     *amqp.Client
}

func (n *loanNotifier) LoanAdded(ctx context.Context, loanID string) {
	n.syncer.LoanAdded(ctx, loanID)
	if n.mq != nil {
		if err := n.mq.PublishSyncRequest(ctx, amqp.ReasonLoanAdded, loanID); err != nil {
			slog.WarnContext(ctx, "Failed to publish sync request", "error", err, "loan_id", loanID)
		}
	}
}

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

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
		logger.Info("Initialized Firestore backend", "project", cfg.FirestoreProjectID)
	default:
		docs = rmemory.New()
		logger.Info("Initialized memory remote backend")
	}

	var uploader blob.Uploader
	switch cfg.BlobBackend {
	case "gcs":
		uploader, err = blob.NewGCS(ctx, cfg.GCSBucket, cfg.GoogleCredsFile)
		if err != nil {
			logger.Error("Failed to initialize GCS uploader", "error", err)
			os.Exit(1)
		}
	default:
		uploader, err = blob.NewLocalDir(cfg.LocalBlobDir, cfg.LocalBlobBase)
		if err != nil {
			logger.Error("Failed to initialize local blob storage", "error", err)
			os.Exit(1)
		}
	}

	syncer := appsync.NewEngine(store, docs)
	if err := syncer.Start(ctx); err != nil {
		logger.Error("Failed to start sync engine", "error", err)
		os.Exit(1)
	}
	defer syncer.Stop(context.Background())

	var mq *amqp.Client
	if cfg.AMQPURL != "" {
		mq, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer mq.Close()
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	budgets := recurrence.NewEngine(store)
	loans := ledger.New(store, &loanNotifier{syncer: syncer, mq: mq})
	invoices := invoice.NewService(uploader, docs)

	watcher := connectivity.New(cfg.ProbeURL, cfg.ProbeInterval, syncer.TriggerSync)
	if err := watcher.Start(ctx); err != nil {
		logger.Error("Failed to start connectivity watcher", "error", err)
		os.Exit(1)
	}
	defer watcher.Stop(context.Background())

	srv := apphttp.NewServer(":"+cfg.Port, store, budgets, loans, syncer, invoices)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting pocketbook server",
		"port", cfg.Port,
		"remote_backend", cfg.RemoteBackend,
		"blob_backend", cfg.BlobBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
