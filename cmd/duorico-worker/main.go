package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"duorico/internal/amqp"
	"duorico/internal/config"
	applog "duorico/internal/log"
	"duorico/internal/sheets"
	gsheet "duorico/internal/sheets/google"
	mem "duorico/internal/sheets/memory"
	"duorico/internal/storage"
	"duorico/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logCfg := applog.DefaultConfig()
	logCfg.Component = "worker"
	applog.SetDefault(applog.New(logCfg))

	slog.Info("Starting duorico-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.New(cfg.SQLiteDBPath)
	if err != nil {
		slog.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Mirror target: Google Sheets when configured, in-memory otherwise so
	// the queue still drains during local development.
	var (
		writer  sheets.TransactionWriter
		remover sheets.TransactionRemover
	)
	if cfg.GoogleSpreadsheetID != "" {
		cli, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			slog.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		writer, remover = cli, cli
		slog.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		store := mem.New()
		writer, remover = store, store
		slog.Info("Google Sheets disabled - mirroring to in-memory store")
	}

	syncWorker := worker.NewSyncWorker(repo, writer, remover, cfg.SyncBatchSize)

	// Consume queue messages for near-real-time mirroring. Without a broker
	// the worker still runs, draining sync_status sweeps alone.
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClientWithRetry(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			slog.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		go func() {
			handlers := amqp.Handlers{
				Sync: func(msg *amqp.TransactionSyncMessage) error {
					return syncWorker.HandleSyncMessage(ctx, msg)
				},
				Delete: func(msg *amqp.TransactionDeleteMessage) error {
					return syncWorker.HandleDeleteMessage(ctx, msg)
				},
			}
			if err := amqpClient.Consume(ctx, handlers); err != nil {
				if !errors.Is(err, context.Canceled) {
					slog.Error("Message consumption failed", "error", err)
				}
				cancel()
			}
		}()
	} else {
		slog.Info("AMQP disabled - relying on periodic sweeps only")
	}

	// Sweep sync_status for anything a lost message left behind.
	go func() {
		if err := syncWorker.Run(ctx, cfg.SyncInterval); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Sync sweep loop failed", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		slog.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
	}
	cancel()
	slog.Info("Worker stopped gracefully")
}
