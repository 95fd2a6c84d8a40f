package rules

import (
	"context"
	"errors"
	"testing"

	"conto/internal/core"
)

type failingStore struct {
	*MemoryStore
}

var errDown = errors.New("store down")

func (failingStore) SaveMerchantRule(context.Context, Rule) error { return errDown }
func (failingStore) SaveUsage(context.Context, Usage) error       { return errDown }

func unclassified(desc, card string) core.Transaction {
	return core.Transaction{
		Date:        "2024-01-10",
		Description: desc,
		Amount:      10,
		Category:    core.CategoryUnclassified,
		PaidBy:      core.PartyPerson1,
		Card:        card,
	}
}

func TestSuggestionThreshold(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(NewMemoryStore())

	for i := 0; i < 2; i++ {
		if err := e.TrackCategorization(ctx, "  mercadona ", core.CategoryShared); err != nil {
			t.Fatalf("track: %v", err)
		}
	}
	if e.ShouldSuggestRule("MERCADONA", core.CategoryShared) {
		t.Fatal("two categorizations must not suggest a rule")
	}

	if err := e.TrackCategorization(ctx, "Mercadona", core.CategoryShared); err != nil {
		t.Fatalf("track: %v", err)
	}
	if !e.ShouldSuggestRule("mercadona", core.CategoryShared) {
		t.Fatal("three categorizations should suggest a rule")
	}
	if e.ShouldSuggestRule("mercadona", core.CategoryPerson1) {
		t.Fatal("counter is per category")
	}

	if err := e.CreateRule(ctx, "mercadona", core.CategoryShared); err != nil {
		t.Fatalf("create rule: %v", err)
	}
	if e.ShouldSuggestRule("mercadona", core.CategoryShared) {
		t.Fatal("no suggestion once a rule exists")
	}
}

func TestTrackCategorizationRejectsNonRuleCategories(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	e := NewEngine(st)

	tests := []struct {
		name    string
		c       core.Category
		wantErr error
	}{
		{"unclassified", core.CategoryUnclassified, ErrUnclassifiedRule},
		{"unknown", core.Category("groceries"), core.ErrInvalidCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := e.TrackCategorization(ctx, "mercadona", tt.c); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if n := e.UsageCount("mercadona", tt.c); n != 0 {
				t.Fatalf("usage = %d, want 0", n)
			}
		})
	}

	_, _, usage, err := st.LoadRules(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(usage) != 0 {
		t.Fatalf("persisted usage = %+v", usage)
	}
}

func TestCreateRuleValidation(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(nil)

	if err := e.CreateRule(ctx, "   ", core.CategoryShared); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("expected ErrEmptyKey, got %v", err)
	}
	if err := e.CreateRule(ctx, "shop", core.CategoryUnclassified); !errors.Is(err, ErrUnclassifiedRule) {
		t.Fatalf("expected ErrUnclassifiedRule, got %v", err)
	}
	if err := e.CreateCardRule(ctx, "visa", core.Category("nobody")); !errors.Is(err, core.ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
}

func TestApplyRulesToTransactions(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(nil)
	if err := e.CreateRule(ctx, "netflix", core.CategoryPerson2); err != nil {
		t.Fatal(err)
	}
	if err := e.CreateCardRule(ctx, "Amex Gold", core.CategoryShared); err != nil {
		t.Fatal(err)
	}

	classified := unclassified("NETFLIX", "amex gold")
	classified.Classify(core.CategoryPerson1, false)

	in := []core.Transaction{
		unclassified(" Netflix ", "amex gold"),
		unclassified("Bakery", "AMEX GOLD"),
		unclassified("Bakery", "Visa"),
		classified,
	}
	out := e.ApplyRulesToTransactions(in)

	want := []struct {
		cat  core.Category
		auto bool
	}{
		{core.CategoryPerson2, true},
		{core.CategoryShared, true},
		{core.CategoryUnclassified, false},
		{core.CategoryPerson1, false},
	}
	if len(out) != len(want) {
		t.Fatalf("got %d results, want %d", len(out), len(want))
	}
	for i, w := range want {
		got := out[i]
		if got.Transaction.Category != w.cat || got.WasAutoApplied != w.auto {
			t.Errorf("row %d: got %s/%v, want %s/%v", i, got.Transaction.Category, got.WasAutoApplied, w.cat, w.auto)
		}
		if got.WasAutoApplied && (!got.Transaction.IsClassified || !got.Transaction.AutoAppliedRule) {
			t.Errorf("row %d: auto-applied flags not set: %+v", i, got.Transaction)
		}
	}
	if in[0].Category != core.CategoryUnclassified {
		t.Fatal("input slice must not be modified")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	e := NewEngine(store)
	if err := e.CreateRule(ctx, "Uber", core.CategoryPerson1); err != nil {
		t.Fatal(err)
	}
	if err := e.CreateCardRule(ctx, "visa", core.CategoryShared); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := e.TrackCategorization(ctx, "lidl", core.CategoryShared); err != nil {
			t.Fatal(err)
		}
	}

	fresh := NewEngine(store)
	if err := fresh.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := fresh.Rules(); len(got) != 1 || got[0].Key != "UBER" {
		t.Fatalf("rules = %+v", got)
	}
	if got := fresh.CardRules(); len(got) != 1 || got[0].Category != core.CategoryShared {
		t.Fatalf("card rules = %+v", got)
	}
	if !fresh.ShouldSuggestRule("LIDL", core.CategoryShared) {
		t.Fatal("usage counters should survive a reload")
	}

	if err := fresh.DeleteRule(ctx, "uber"); err != nil {
		t.Fatal(err)
	}
	if len(fresh.Rules()) != 0 {
		t.Fatal("rule not deleted")
	}
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(failingStore{NewMemoryStore()})

	if err := e.CreateRule(ctx, "shop", core.CategoryShared); !errors.Is(err, errDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	if c, ok := e.Match(unclassified("SHOP", "")); !ok || c != core.CategoryShared {
		t.Fatalf("rule should be kept in memory, got %s/%v", c, ok)
	}
	if err := e.TrackCategorization(ctx, "shop", core.CategoryShared); !errors.Is(err, errDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	if e.UsageCount("shop", core.CategoryShared) != 1 {
		t.Fatal("usage should be counted in memory")
	}
}
