package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"conto/internal/core"
	"conto/internal/rules"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "conto.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testTx(id, desc string) core.Transaction {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	t := core.Transaction{
		ID:          id,
		Date:        "2024-04-30",
		Description: desc,
		Amount:      19.99,
		PaidBy:      core.PartyPerson2,
		Card:        "Visa",
		Source:      "april.csv",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	t.Classify(core.CategoryUnclassified, false)
	return t
}

func TestTransactionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if err := repo.InsertTransactions(ctx, []core.Transaction{testTx("a", "Lidl"), testTx("b", "Shell")}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	list, err := repo.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d transactions, want 2", len(list))
	}
	got := list[0]
	if got.ID != "a" || got.Amount != 19.99 || got.PaidBy != core.PartyPerson2 || got.Card != "Visa" {
		t.Fatalf("unexpected row %+v", got)
	}
	if !got.CreatedAt.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("created_at = %v", got.CreatedAt)
	}

	upd := got
	upd.Classify(core.CategoryShared, true)
	if err := repo.UpdateTransactionCategory(ctx, upd); err != nil {
		t.Fatalf("update: %v", err)
	}
	fetched, err := repo.GetTransaction(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Category != core.CategoryShared || !fetched.IsClassified || !fetched.AutoAppliedRule {
		t.Fatalf("update not stored: %+v", fetched)
	}

	if err := repo.DeleteTransaction(ctx, "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetTransaction(ctx, "b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	missing := testTx("zzz", "ghost")
	if err := repo.UpdateTransactionCategory(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestSyncBookkeeping(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if err := repo.InsertTransactions(ctx, []core.Transaction{testTx("a", "Lidl")}); err != nil {
		t.Fatal(err)
	}
	pending, err := repo.PendingSync(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Operation != OpUpsert || pending[0].Version != 1 {
		t.Fatalf("pending = %+v", pending)
	}

	// a change after the worker read version 1 must keep the row pending
	upd := testTx("a", "Lidl")
	upd.Classify(core.CategoryPerson1, false)
	if err := repo.UpdateTransactionCategory(ctx, upd); err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkSynced(ctx, "a", 1); err != nil {
		t.Fatal(err)
	}
	if pending, _ = repo.PendingSync(ctx, 10); len(pending) != 1 || pending[0].Version != 2 {
		t.Fatalf("expected version 2 still pending, got %+v", pending)
	}

	if err := repo.MarkSyncError(ctx, "a", errors.New("quota")); err != nil {
		t.Fatal(err)
	}
	state, err := repo.GetSyncState(ctx, "a")
	if err != nil || state.Attempts != 1 {
		t.Fatalf("state = %+v, %v", state, err)
	}

	if err := repo.MarkSynced(ctx, "a", 2); err != nil {
		t.Fatal(err)
	}
	if pending, _ = repo.PendingSync(ctx, 10); len(pending) != 0 {
		t.Fatalf("expected nothing pending, got %+v", pending)
	}

	if err := repo.DeleteTransaction(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	pending, _ = repo.PendingSync(ctx, 10)
	if len(pending) != 1 || pending[0].Operation != OpDelete {
		t.Fatalf("expected pending delete, got %+v", pending)
	}

	stats, err := repo.SyncStats(ctx)
	if err != nil || stats["pending"] != 1 {
		t.Fatalf("stats = %v, %v", stats, err)
	}
}

func TestRuleStore(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	engine := rules.NewEngine(repo)
	if err := engine.CreateRule(ctx, "netflix", core.CategoryPerson2); err != nil {
		t.Fatal(err)
	}
	if err := engine.CreateCardRule(ctx, "amex", core.CategoryShared); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < rules.SuggestionThreshold; i++ {
		if err := engine.TrackCategorization(ctx, "mercadona", core.CategoryShared); err != nil {
			t.Fatal(err)
		}
	}

	reloaded := rules.NewEngine(repo)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(reloaded.Rules()) != 1 || len(reloaded.CardRules()) != 1 {
		t.Fatalf("rules = %v / %v", reloaded.Rules(), reloaded.CardRules())
	}
	if !reloaded.ShouldSuggestRule("Mercadona", core.CategoryShared) {
		t.Fatal("usage count not persisted")
	}

	if err := reloaded.DeleteCardRule(ctx, "AMEX"); err != nil {
		t.Fatal(err)
	}
	_, card, _, err := repo.LoadRules(ctx)
	if err != nil || len(card) != 0 {
		t.Fatalf("card rules after delete = %v, %v", card, err)
	}
}

func TestProportions(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	p, err := repo.LoadProportions(ctx)
	if err != nil || p != core.DefaultProportions() {
		t.Fatalf("default = %+v, %v", p, err)
	}
	want := core.ProportionSettings{P1: 45, P2: 55}
	if err := repo.SaveProportions(ctx, want); err != nil {
		t.Fatal(err)
	}
	if p, err = repo.LoadProportions(ctx); err != nil || p != want {
		t.Fatalf("loaded = %+v, %v", p, err)
	}
}
