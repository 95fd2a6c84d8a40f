package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"conto/internal/amqp"
	"conto/internal/core"
	"conto/internal/rules"
	"conto/internal/settlement"
	"conto/internal/store"
)

type published struct {
	id, op string
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) PublishTransactionSync(_ context.Context, id, op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{id, op})
	return f.err
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

type brokenRepo struct{ *store.MemoryRepository }

var errDisk = errors.New("disk full")

func (brokenRepo) InsertTransactions(context.Context, []core.Transaction) error { return errDisk }

func newTransactionService(t *testing.T, repo store.Repository) (*TransactionService, *rules.Engine, *fakePublisher) {
	t.Helper()
	st := store.New(repo, store.Options{})
	if err := st.Load(context.Background()); err != nil {
		t.Fatalf("load store: %v", err)
	}
	engine := rules.NewEngine(rules.NewMemoryStore())
	pub := &fakePublisher{}
	return NewTransactionService(st, engine, NewSettingsService(NewMemorySettings()), pub, nil), engine, pub
}

func manual(desc string, amount float64, paidBy core.Party, c core.Category) NewTransaction {
	return NewTransaction{Date: "2024-05-01", Description: desc, Amount: amount, PaidBy: paidBy, Category: c}
}

func TestCreateAppliesRulesWhenUncategorized(t *testing.T) {
	ctx := context.Background()
	svc, engine, pub := newTransactionService(t, store.NewMemoryRepository())

	if err := engine.CreateRule(ctx, "netflix", core.CategoryShared); err != nil {
		t.Fatal(err)
	}

	tx, err := svc.Create(ctx, manual("Netflix", 15.99, core.PartyPerson1, ""))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tx.Category != core.CategoryShared || !tx.AutoAppliedRule {
		t.Fatalf("rule not applied: %+v", tx)
	}

	tx, err = svc.Create(ctx, manual("Bakery", 4, core.PartyPerson2, ""))
	if err != nil {
		t.Fatal(err)
	}
	if tx.IsClassified {
		t.Fatalf("expected unclassified, got %s", tx.Category)
	}

	if pub.count() != 2 {
		t.Fatalf("published %d messages, want 2", pub.count())
	}
	if got := len(svc.List(core.CategoryShared)); got != 1 {
		t.Fatalf("shared filter returned %d", got)
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	svc, _, pub := newTransactionService(t, store.NewMemoryRepository())

	_, err := svc.Create(context.Background(), manual("Bad", -3, core.PartyPerson1, core.CategoryShared))
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if pub.count() != 0 {
		t.Fatal("invalid transaction must not be published")
	}
}

func TestCreatePersistFailureStillReturnsTransaction(t *testing.T) {
	svc, _, _ := newTransactionService(t, brokenRepo{store.NewMemoryRepository()})

	tx, err := svc.Create(context.Background(), manual("Groceries", 80, core.PartyPerson1, core.CategoryShared))
	if !errors.Is(err, store.ErrPersist) {
		t.Fatalf("expected persist error, got %v", err)
	}
	if tx.ID == "" {
		t.Fatal("local copy missing")
	}
	if len(svc.List("")) != 1 {
		t.Fatal("local state lost")
	}
}

func TestCategorizeSuggestsRuleAtThreshold(t *testing.T) {
	ctx := context.Background()
	svc, engine, _ := newTransactionService(t, store.NewMemoryRepository())

	var last Categorized
	for i := 0; i < rules.SuggestionThreshold; i++ {
		tx, err := svc.Create(ctx, manual("  Spotify ", 9.99, core.PartyPerson2, ""))
		if err != nil {
			t.Fatal(err)
		}
		last, err = svc.Categorize(ctx, tx.ID, core.CategoryShared)
		if err != nil {
			t.Fatalf("categorize: %v", err)
		}
		if i < rules.SuggestionThreshold-1 && last.SuggestRule {
			t.Fatalf("suggested after %d categorizations", i+1)
		}
	}
	if !last.SuggestRule || last.SuggestionFor != "SPOTIFY" || last.UsageCount != 3 {
		t.Fatalf("unexpected result %+v", last)
	}

	if err := engine.CreateRule(ctx, last.SuggestionFor, core.CategoryShared); err != nil {
		t.Fatal(err)
	}
	tx, _ := svc.Create(ctx, manual("spotify", 9.99, core.PartyPerson2, ""))
	res, err := svc.Categorize(ctx, tx.ID, core.CategoryShared)
	if err != nil {
		t.Fatal(err)
	}
	if res.SuggestRule {
		t.Fatal("rule already exists, no suggestion expected")
	}
}

func TestCategorizeUnknownID(t *testing.T) {
	svc, _, _ := newTransactionService(t, store.NewMemoryRepository())
	if _, err := svc.Categorize(context.Background(), "nope", core.CategoryShared); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeletePublishes(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newTransactionService(t, store.NewMemoryRepository())
	pub.err = errors.New("broker down")

	tx, err := svc.Create(ctx, manual("Taxi", 20, core.PartyPerson1, core.CategoryPerson1))
	if err != nil {
		t.Fatalf("publish failure must not fail create: %v", err)
	}
	if err := svc.Delete(ctx, tx.ID); err != nil {
		t.Fatal(err)
	}
	if last := pub.msgs[len(pub.msgs)-1]; last.op != amqp.OpDelete || last.id != tx.ID {
		t.Fatalf("last message = %+v", last)
	}
	if err := svc.Delete(ctx, tx.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestSettlementUsesStoredProportions(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTransactionService(t, store.NewMemoryRepository())

	if err := svc.settings.SetProportions(ctx, core.ProportionSettings{P1: 45, P2: 55}); err != nil {
		t.Fatal(err)
	}
	for _, in := range []NewTransaction{
		manual("Rent", 1000, core.PartyPerson1, core.CategoryShared),
		manual("Groceries", 200, core.PartyPerson2, core.CategoryShared),
		manual("Haircut", 30, core.PartyPerson1, core.CategoryPerson1),
		manual("Gym", 60, core.PartyPerson1, core.CategoryPerson2),
	} {
		if _, err := svc.Create(ctx, in); err != nil {
			t.Fatal(err)
		}
	}

	r := svc.Settlement(ctx)
	if r.Proportions.P1 != 45 {
		t.Fatalf("proportions = %+v", r.Proportions)
	}
	if r.FinalSettlement != 520 || r.Direction != settlement.Person2ToPerson1 {
		t.Fatalf("settlement = %v %s", r.FinalSettlement, r.Direction)
	}
	if !r.Balanced || r.Settled {
		t.Fatalf("flags = balanced %v settled %v", r.Balanced, r.Settled)
	}
}

func TestApplyRules(t *testing.T) {
	ctx := context.Background()
	svc, engine, pub := newTransactionService(t, store.NewMemoryRepository())

	for _, d := range []string{"Uber", "uber", "Cinema"} {
		if _, err := svc.Create(ctx, manual(d, 12, core.PartyPerson1, "")); err != nil {
			t.Fatal(err)
		}
	}
	before := pub.count()
	if err := engine.CreateRule(ctx, "UBER", core.CategoryPerson1); err != nil {
		t.Fatal(err)
	}

	n, err := svc.ApplyRules(ctx)
	if err != nil || n != 2 {
		t.Fatalf("applied %d, %v; want 2", n, err)
	}
	if got := len(svc.List(core.CategoryUnclassified)); got != 1 {
		t.Fatalf("unclassified left = %d, want 1", got)
	}
	if pub.count()-before != 2 {
		t.Fatalf("published %d updates, want 2", pub.count()-before)
	}
}
