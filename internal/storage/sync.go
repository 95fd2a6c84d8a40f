package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Sync operations recorded in sync_state.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// PendingSync is the minimal data the worker needs to mirror one transaction.
type PendingSync struct {
	TransactionID string
	Operation     string
	Version       int64
	Attempts      int
	UpdatedAt     time.Time
}

// markPending records that id changed and must be mirrored again. Every call
// bumps the version so a sync that raced with the change is not marked done.
func (r *SQLiteRepository) markPending(ctx context.Context, tx *sql.Tx, id, op string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sync_state (transaction_id, operation, status, version, attempts, last_error, updated_at)
		VALUES (?, ?, 'pending', 1, 0, '', ?)
		ON CONFLICT(transaction_id) DO UPDATE SET
			operation = excluded.operation,
			status = 'pending',
			version = sync_state.version + 1,
			last_error = '',
			updated_at = excluded.updated_at`,
		id, op, r.stamp())
	if err != nil {
		return fmt.Errorf("mark sync pending: %w", err)
	}
	return nil
}

// GetSyncState returns the bookkeeping row for one transaction.
func (r *SQLiteRepository) GetSyncState(ctx context.Context, id string) (PendingSync, error) {
	var (
		p       PendingSync
		updated string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT transaction_id, operation, version, attempts, updated_at
		FROM sync_state WHERE transaction_id = ?`, id).
		Scan(&p.TransactionID, &p.Operation, &p.Version, &p.Attempts, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("sync state %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return p, fmt.Errorf("get sync state: %w", err)
	}
	p.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return p, nil
}

// PendingSync returns changes not yet mirrored, oldest first. Rows that
// failed before are retried too.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]PendingSync, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT transaction_id, operation, version, attempts, updated_at
		FROM sync_state
		WHERE status IN ('pending', 'error')
		ORDER BY updated_at
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync: %w", err)
	}
	defer rows.Close()

	var out []PendingSync
	for rows.Next() {
		var p PendingSync
		var updated string
		if err := rows.Scan(&p.TransactionID, &p.Operation, &p.Version, &p.Attempts, &updated); err != nil {
			return nil, fmt.Errorf("scan pending sync: %w", err)
		}
		p.UpdatedAt, _ = time.Parse(timeLayout, updated)
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced marks a change as mirrored, unless a newer version arrived since.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, version int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sync_state SET status = 'synced', last_error = '', updated_at = ?
		WHERE transaction_id = ? AND version = ?`, r.stamp(), id, version)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		slog.InfoContext(ctx, "Transaction changed during sync, leaving pending", "id", id, "version", version)
		return nil
	}
	slog.InfoContext(ctx, "Transaction marked as synced", "id", id, "version", version)
	return nil
}

// MarkSyncError records a failed attempt.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE sync_state SET status = 'error', attempts = attempts + 1, last_error = ?, updated_at = ?
		WHERE transaction_id = ?`, msg, r.stamp(), id)
	if err != nil {
		return fmt.Errorf("mark sync error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id, "error", msg)
	return nil
}

// SyncStats counts sync_state rows per status.
func (r *SQLiteRepository) SyncStats(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM sync_state GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("sync stats: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan sync stats: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}
