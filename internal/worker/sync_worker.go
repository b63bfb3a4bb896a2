package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"treasury/internal/amqp"
	"treasury/internal/budget"
	"treasury/internal/core"
	"treasury/internal/metrics"
	"treasury/internal/sheets"
	"treasury/internal/storage"
)

// SyncWorker keeps the ledger mirror in step with the budgets collection.
type SyncWorker struct {
	store      storage.Store
	collection string
	mirror     sheets.Mirror
	metrics    *metrics.Metrics
}

func NewSyncWorker(store storage.Store, collection string, mirror sheets.Mirror, m *metrics.Metrics) *SyncWorker {
	return &SyncWorker{
		store:      store,
		collection: collection,
		mirror:     mirror,
		metrics:    m,
	}
}

// HandleChange mirrors one change message. The message only names the
// budget; its current state is read from the store, so redelivered or
// reordered messages converge on the latest record.
func (w *SyncWorker) HandleChange(ctx context.Context, msg *amqp.BudgetChangeMessage) error {
	slog.InfoContext(ctx, "Processing change message",
		"id", msg.ID,
		"kind", msg.Kind,
		"version", msg.Version)

	if msg.Kind == storage.Deleted {
		return w.delete(ctx, msg.ID)
	}

	b, err := budget.Fetch(ctx, w.store, w.collection, msg.ID)
	if core.IsNotFound(err) {
		slog.InfoContext(ctx, "Budget no longer exists, removing ledger row", "id", msg.ID)
		return w.delete(ctx, msg.ID)
	}
	if err != nil {
		return fmt.Errorf("get budget from store: %w", err)
	}

	err = w.mirror.Upsert(ctx, b)
	w.metrics.Mirror("upsert", err)
	if err != nil {
		return fmt.Errorf("upsert ledger row: %w", err)
	}
	slog.InfoContext(ctx, "Successfully mirrored budget",
		"id", b.ID,
		"event_name", b.EventName,
		"status", b.Status)
	return nil
}

func (w *SyncWorker) delete(ctx context.Context, id string) error {
	err := w.mirror.Delete(ctx, id)
	w.metrics.Mirror("delete", err)
	if err != nil {
		return fmt.Errorf("delete ledger row: %w", err)
	}
	return nil
}

// Resync rewrites the whole ledger from the store. It repairs rows missed
// while the worker was down or the broker dropped events.
func (w *SyncWorker) Resync(ctx context.Context) error {
	budgets, err := budget.ListAll(ctx, w.store, w.collection)
	if err != nil {
		w.metrics.Mirror("replace", err)
		return fmt.Errorf("list budgets: %w", err)
	}
	err = w.mirror.Replace(ctx, budgets)
	w.metrics.Mirror("replace", err)
	if err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	slog.InfoContext(ctx, "Ledger resync completed", "count", len(budgets))
	return nil
}

// RunPeriodicResync calls Resync every interval until ctx ends. Failures are
// logged and retried on the next tick.
func (w *SyncWorker) RunPeriodicResync(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Resync(ctx); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "Periodic ledger resync failed", "error", err)
			}
		}
	}
}
