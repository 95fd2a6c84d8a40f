package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"conto/internal/amqp"
	"conto/internal/core"
	"conto/internal/metrics"
	"conto/internal/settlement"
	"conto/internal/sheets"
	"conto/internal/storage"
)

// SyncStore is the storage the worker reads from and records progress in.
type SyncStore interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	LoadProportions(ctx context.Context) (core.ProportionSettings, error)
	GetSyncState(ctx context.Context, id string) (storage.PendingSync, error)
	PendingSync(ctx context.Context, limit int) ([]storage.PendingSync, error)
	MarkSynced(ctx context.Context, id string, version int64) error
	MarkSyncError(ctx context.Context, id string, cause error) error
}

// Consumer delivers sync messages until ctx ends.
type Consumer interface {
	ConsumeTransactionSync(ctx context.Context, handler amqp.Handler) error
}

type Config struct {
	BatchSize   int
	Interval    time.Duration
	Person1Name string
	Person2Name string
}

// SyncWorker mirrors transactions from SQLite into the spreadsheet and keeps
// the settlement summary there current.
type SyncWorker struct {
	store    SyncStore
	exporter sheets.TransactionExporter
	summary  sheets.SettlementWriter
	metrics  *metrics.Metrics
	cfg      Config
	now      func() time.Time
}

func NewSyncWorker(store SyncStore, exporter sheets.TransactionExporter, summary sheets.SettlementWriter, m *metrics.Metrics, cfg Config) *SyncWorker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &SyncWorker{
		store:    store,
		exporter: exporter,
		summary:  summary,
		metrics:  m,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Run consumes messages (when consumer is non-nil) and sweeps pending rows
// every Interval until ctx ends or either loop fails.
func (w *SyncWorker) Run(ctx context.Context, consumer Consumer) error {
	if err := w.StartupSyncCheck(ctx); err != nil {
		slog.WarnContext(ctx, "Startup sync check failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if consumer != nil {
		g.Go(func() error {
			return consumer.ConsumeTransactionSync(ctx, w.HandleSyncMessage)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(w.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if _, err := w.ProcessPending(ctx, w.cfg.BatchSize); err != nil {
					slog.ErrorContext(ctx, "Periodic sync failed", "error", err)
				}
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HandleSyncMessage processes a single transaction sync message from AMQP
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message", "id", msg.ID, "operation", msg.Operation)

	state, err := w.store.GetSyncState(ctx, msg.ID)
	if errors.Is(err, storage.ErrNotFound) {
		slog.WarnContext(ctx, "No sync state for message, skipping", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get sync state: %w", err)
	}

	if err := w.syncOne(ctx, state); err != nil {
		return err
	}
	w.refreshSummary(ctx)
	return nil
}

// ProcessPending syncs up to limit rows that are still pending. This is a
// backup for lost AMQP messages. It returns how many rows were synced.
func (w *SyncWorker) ProcessPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.store.PendingSync(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending sync: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	synced := 0
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if err := w.syncOne(ctx, p); err != nil {
			slog.ErrorContext(ctx, "Failed to sync transaction", "id", p.TransactionID, "error", err)
			continue
		}
		synced++
	}

	if synced > 0 {
		w.refreshSummary(ctx)
	}
	return synced, nil
}

// StartupSyncCheck drains a larger batch once, to recover from worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	n, err := w.ProcessPending(ctx, w.cfg.BatchSize*5)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Startup sync completed", "synced", n)
	return nil
}

func (w *SyncWorker) syncOne(ctx context.Context, p storage.PendingSync) error {
	var err error
	switch p.Operation {
	case storage.OpDelete:
		err = w.exporter.Remove(ctx, p.TransactionID)
	case storage.OpUpsert:
		var t core.Transaction
		t, err = w.store.GetTransaction(ctx, p.TransactionID)
		if errors.Is(err, storage.ErrNotFound) {
			// deleted since; the delete marker will follow
			slog.InfoContext(ctx, "Transaction gone before sync", "id", p.TransactionID)
			return nil
		}
		if err == nil {
			err = w.exporter.Upsert(ctx, t)
		}
	default:
		err = fmt.Errorf("unknown sync operation %q", p.Operation)
	}
	w.metrics.ObserveSync(p.Operation, err)

	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, p.TransactionID, err); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", p.TransactionID, "error", markErr)
		}
		return fmt.Errorf("sync %s %s: %w", p.Operation, p.TransactionID, err)
	}

	if err := w.store.MarkSynced(ctx, p.TransactionID, p.Version); err != nil {
		// the sheet write worked; the row is retried and rewritten idempotently
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", p.TransactionID, "error", err)
	}
	return nil
}

func (w *SyncWorker) refreshSummary(ctx context.Context) {
	if w.summary == nil {
		return
	}
	txs, err := w.store.ListTransactions(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list transactions for summary", "error", err)
		return
	}
	p, err := w.store.LoadProportions(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Using default proportions for summary", "error", err)
		p = core.DefaultProportions()
	}
	p = p.Normalize()

	res := settlement.Calculate(txs, p)
	if err := settlement.CheckBalance(res); err != nil {
		slog.InfoContext(ctx, "Settlement totals do not balance", "detail", err)
	}

	err = w.summary.WriteSettlement(ctx, sheets.Summary{
		Result:      res,
		Proportions: p,
		Person1Name: w.cfg.Person1Name,
		Person2Name: w.cfg.Person2Name,
		GeneratedAt: w.now(),
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to write settlement summary", "error", err)
	}
}
