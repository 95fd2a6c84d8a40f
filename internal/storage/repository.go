package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"conto/internal/core"
	"conto/internal/rules"

	_ "modernc.org/sqlite"
)

// Fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const proportionsKey = "proportions"

var ErrNotFound = errors.New("not found")

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) stamp() string {
	return r.now().UTC().Format(timeLayout)
}

const transactionColumns = `id, date, description, amount, category, paid_by, is_classified,
	card, auto_applied_rule, source, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t                    core.Transaction
		category, paidBy     string
		created, updated     string
		classified, autoRule bool
	)
	err := s.Scan(&t.ID, &t.Date, &t.Description, &t.Amount, &category, &paidBy,
		&classified, &t.Card, &autoRule, &t.Source, &created, &updated)
	if err != nil {
		return t, err
	}
	t.Category = core.Category(category)
	t.PaidBy = core.Party(paidBy)
	t.IsClassified = classified
	t.AutoAppliedRule = autoRule
	t.CreatedAt, _ = time.Parse(timeLayout, created)
	t.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return t, nil
}

// ListTransactions implements store.Repository
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions ORDER BY date, created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetTransaction returns a single transaction by ID
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return t, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// InsertTransactions implements store.Repository. Existing IDs are overwritten.
func (r *SQLiteRepository) InsertTransactions(ctx context.Context, txs []core.Transaction) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO transactions (`+transactionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				date = excluded.date,
				description = excluded.description,
				amount = excluded.amount,
				category = excluded.category,
				paid_by = excluded.paid_by,
				is_classified = excluded.is_classified,
				card = excluded.card,
				auto_applied_rule = excluded.auto_applied_rule,
				source = excluded.source,
				updated_at = excluded.updated_at`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, t := range txs {
			_, err := stmt.ExecContext(ctx, t.ID, t.Date, t.Description, t.Amount,
				string(t.Category), string(t.PaidBy), t.IsClassified, t.Card,
				t.AutoAppliedRule, t.Source,
				t.CreatedAt.UTC().Format(timeLayout), t.UpdatedAt.UTC().Format(timeLayout))
			if err != nil {
				return fmt.Errorf("insert transaction %s: %w", t.ID, err)
			}
			if err := r.markPending(ctx, tx, t.ID, OpUpsert); err != nil {
				return err
			}
		}

		slog.InfoContext(ctx, "Transactions saved to SQLite", "count", len(txs))
		return nil
	})
}

// UpdateTransactionCategory implements store.Repository
func (r *SQLiteRepository) UpdateTransactionCategory(ctx context.Context, t core.Transaction) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE transactions
			SET category = ?, is_classified = ?, auto_applied_rule = ?, updated_at = ?
			WHERE id = ?`,
			string(t.Category), t.IsClassified, t.AutoAppliedRule,
			t.UpdatedAt.UTC().Format(timeLayout), t.ID)
		if err != nil {
			return fmt.Errorf("update category: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("transaction %s: %w", t.ID, ErrNotFound)
		}
		return r.markPending(ctx, tx, t.ID, OpUpsert)
	})
}

// DeleteTransaction implements store.Repository
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		return r.markPending(ctx, tx, id, OpDelete)
	})
}

// LoadRules implements rules.RuleStore
func (r *SQLiteRepository) LoadRules(ctx context.Context) ([]rules.Rule, []rules.Rule, []rules.Usage, error) {
	merchant, err := r.loadRuleTable(ctx, `SELECT merchant, category FROM merchant_rules ORDER BY merchant`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load merchant rules: %w", err)
	}
	card, err := r.loadRuleTable(ctx, `SELECT card, category FROM card_rules ORDER BY card`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load card rules: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT merchant, category, count FROM categorization_counts`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load usage counts: %w", err)
	}
	defer rows.Close()

	var usage []rules.Usage
	for rows.Next() {
		var u rules.Usage
		var category string
		if err := rows.Scan(&u.Merchant, &category, &u.Count); err != nil {
			return nil, nil, nil, fmt.Errorf("scan usage count: %w", err)
		}
		u.Category = core.Category(category)
		usage = append(usage, u)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, nil, err
	}
	return merchant, card, usage, nil
}

func (r *SQLiteRepository) loadRuleTable(ctx context.Context, query string) ([]rules.Rule, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rules.Rule
	for rows.Next() {
		var rule rules.Rule
		var category string
		if err := rows.Scan(&rule.Key, &category); err != nil {
			return nil, err
		}
		rule.Category = core.Category(category)
		out = append(out, rule)
	}
	return out, rows.Err()
}

// SaveMerchantRule implements rules.RuleStore
func (r *SQLiteRepository) SaveMerchantRule(ctx context.Context, rule rules.Rule) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO merchant_rules (merchant, category, created_at) VALUES (?, ?, ?)
		ON CONFLICT(merchant) DO UPDATE SET category = excluded.category`,
		rule.Key, string(rule.Category), r.stamp())
	if err != nil {
		return fmt.Errorf("save merchant rule: %w", err)
	}
	return nil
}

// DeleteMerchantRule implements rules.RuleStore
func (r *SQLiteRepository) DeleteMerchantRule(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM merchant_rules WHERE merchant = ?`, key); err != nil {
		return fmt.Errorf("delete merchant rule: %w", err)
	}
	return nil
}

// SaveCardRule implements rules.RuleStore
func (r *SQLiteRepository) SaveCardRule(ctx context.Context, rule rules.Rule) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO card_rules (card, category, created_at) VALUES (?, ?, ?)
		ON CONFLICT(card) DO UPDATE SET category = excluded.category`,
		rule.Key, string(rule.Category), r.stamp())
	if err != nil {
		return fmt.Errorf("save card rule: %w", err)
	}
	return nil
}

// DeleteCardRule implements rules.RuleStore
func (r *SQLiteRepository) DeleteCardRule(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM card_rules WHERE card = ?`, key); err != nil {
		return fmt.Errorf("delete card rule: %w", err)
	}
	return nil
}

// SaveUsage implements rules.RuleStore
func (r *SQLiteRepository) SaveUsage(ctx context.Context, u rules.Usage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categorization_counts (merchant, category, count) VALUES (?, ?, ?)
		ON CONFLICT(merchant, category) DO UPDATE SET count = excluded.count`,
		u.Merchant, string(u.Category), u.Count)
	if err != nil {
		return fmt.Errorf("save usage count: %w", err)
	}
	return nil
}

// LoadProportions returns the stored split, or the default when none is saved.
// The value is returned as stored; callers normalize.
func (r *SQLiteRepository) LoadProportions(ctx context.Context) (core.ProportionSettings, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, proportionsKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DefaultProportions(), nil
	}
	if err != nil {
		return core.ProportionSettings{}, fmt.Errorf("load proportions: %w", err)
	}

	var p core.ProportionSettings
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return core.ProportionSettings{}, fmt.Errorf("decode proportions: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) SaveProportions(ctx context.Context, p core.ProportionSettings) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode proportions: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		proportionsKey, string(raw), r.stamp())
	if err != nil {
		return fmt.Errorf("save proportions: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
