package memory

import (
	"context"
	"errors"
	"testing"

	"conto/internal/core"
	"conto/internal/sheets"
)

func TestSheetUpsertAndRemove(t *testing.T) {
	ctx := context.Background()
	s := New()

	a := core.Transaction{ID: "a", Description: "first"}
	b := core.Transaction{ID: "b", Description: "second"}
	for _, tx := range []core.Transaction{a, b} {
		if err := s.Upsert(ctx, tx); err != nil {
			t.Fatal(err)
		}
	}
	a.Description = "first, edited"
	if err := s.Upsert(ctx, a); err != nil {
		t.Fatal(err)
	}

	rows := s.Rows()
	if len(rows) != 2 || rows[0].Description != "first, edited" || rows[1].ID != "b" {
		t.Fatalf("unexpected rows %+v", rows)
	}

	if err := s.Remove(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(ctx, "unknown"); err != nil {
		t.Fatal(err)
	}
	if rows = s.Rows(); len(rows) != 1 || rows[0].ID != "b" {
		t.Fatalf("unexpected rows after remove %+v", rows)
	}
	if s.Writes() != 4 {
		t.Fatalf("writes = %d, want 4", s.Writes())
	}
}

func TestSheetFailure(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("quota exceeded")
	s.FailWith(boom)

	if err := s.Upsert(ctx, core.Transaction{ID: "a"}); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if err := s.WriteSettlement(ctx, sheets.Summary{}); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}

	s.FailWith(nil)
	if err := s.WriteSettlement(ctx, sheets.Summary{Person1Name: "Ana"}); err != nil {
		t.Fatal(err)
	}
	if sum, ok := s.Summary(); !ok || sum.Person1Name != "Ana" {
		t.Fatalf("summary = %+v, %v", sum, ok)
	}
}
