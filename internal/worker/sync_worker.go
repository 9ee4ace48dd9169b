// Package worker mirrors persisted transactions to the spreadsheet. It is
// driven two ways: AMQP messages for near-real-time changes, and a periodic
// sweep over sync_status for anything a lost message left behind.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"duorico/internal/amqp"
	"duorico/internal/core"
	"duorico/internal/metrics"
	"duorico/internal/sheets"
)

// SyncStore is the slice of the persistence gateway the worker needs.
type SyncStore interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	GetPendingSync(ctx context.Context, limit int) ([]core.Transaction, error)
	MarkSynced(ctx context.Context, id string) error
	MarkSyncError(ctx context.Context, id string) error
}

// SyncWorker mirrors transactions from SQLite to the configured sheet.
type SyncWorker struct {
	store     SyncStore
	writer    sheets.TransactionWriter
	remover   sheets.TransactionRemover
	batchSize int
}

func NewSyncWorker(store SyncStore, writer sheets.TransactionWriter, remover sheets.TransactionRemover, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &SyncWorker{store: store, writer: writer, remover: remover, batchSize: batchSize}
}

// HandleSyncMessage mirrors one transaction. The message carries only the id;
// the current row is read from the database so late or duplicated deliveries
// converge on the latest state.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message", "transaction_id", msg.TransactionID)

	t, err := w.store.GetTransaction(ctx, msg.TransactionID)
	if err != nil {
		// Deleted before the message arrived; nothing to mirror.
		slog.WarnContext(ctx, "Transaction gone before sync, skipping",
			"transaction_id", msg.TransactionID, "error", err)
		return nil
	}

	return w.mirror(ctx, t)
}

// HandleDeleteMessage removes mirrored rows for deleted transactions.
func (w *SyncWorker) HandleDeleteMessage(ctx context.Context, msg *amqp.TransactionDeleteMessage) error {
	slog.InfoContext(ctx, "Processing delete message", "count", len(msg.TransactionIDs))

	if w.remover == nil {
		slog.WarnContext(ctx, "No sheet remover configured, skipping mirrored deletion",
			"count", len(msg.TransactionIDs))
		return nil
	}

	if err := w.remover.Remove(ctx, msg.TransactionIDs); err != nil {
		metrics.SheetSyncs.WithLabelValues("error").Inc()
		return fmt.Errorf("remove mirrored rows: %w", err)
	}
	metrics.SheetSyncs.WithLabelValues("deleted").Inc()
	return nil
}

func (w *SyncWorker) mirror(ctx context.Context, t core.Transaction) error {
	ref, err := w.writer.Append(ctx, t)
	if err != nil {
		metrics.SheetSyncs.WithLabelValues("error").Inc()
		if markErr := w.store.MarkSyncError(ctx, t.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error",
				"transaction_id", t.ID, "error", markErr)
		}
		return fmt.Errorf("append to sheet: %w", err)
	}

	if err := w.store.MarkSynced(ctx, t.ID); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}

	metrics.SheetSyncs.WithLabelValues("synced").Inc()
	slog.InfoContext(ctx, "Mirrored transaction", "transaction_id", t.ID, "row_ref", ref)
	return nil
}

// ProcessPending sweeps transactions still marked pending or errored and
// mirrors them. Returns how many were attempted.
func (w *SyncWorker) ProcessPending(ctx context.Context) (int, error) {
	pending, err := w.store.GetPendingSync(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("load pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Sweeping pending transactions", "count", len(pending))
	for _, t := range pending {
		if err := w.mirror(ctx, t); err != nil {
			slog.ErrorContext(ctx, "Sweep mirror failed",
				"transaction_id", t.ID, "error", err)
			// Keep going; the row stays errored and the next sweep retries.
		}
		if ctx.Err() != nil {
			return len(pending), ctx.Err()
		}
	}
	return len(pending), nil
}

// Run performs a startup sweep and then repeats every interval until the
// context ends. Meant to run beside the AMQP consumer.
func (w *SyncWorker) Run(ctx context.Context, interval time.Duration) error {
	if _, err := w.ProcessPending(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup sweep failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ProcessPending(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic sweep failed", "error", err)
			}
		}
	}
}
