package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"conto/internal/core"
	"conto/internal/importer"
	"conto/internal/rules"
	"conto/internal/store"
)

const statement = `Date;Description;Amount
01/05/2024;NETFLIX.COM;-15,99
02/05/2024;Supermarket;-54,20
03/05/2024;Bakery;-3,50
`

func newImportService(t *testing.T) (*ImportService, *store.Store, *rules.Engine, *fakePublisher) {
	t.Helper()
	st := store.New(store.NewMemoryRepository(), store.Options{})
	if err := st.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	engine := rules.NewEngine(nil)
	pub := &fakePublisher{}
	return NewImportService(st, engine, NewPreviewCache(4, nil), pub, nil), st, engine, pub
}

func csvFile(name, body string) importer.File {
	return importer.File{Name: name, Reader: strings.NewReader(body)}
}

func TestPreviewAndCommit(t *testing.T) {
	ctx := context.Background()
	svc, st, engine, pub := newImportService(t)

	if err := engine.CreateRule(ctx, "netflix.com", core.CategoryShared); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Add(ctx, core.Transaction{
		Date: "2024-05-03", Description: "bakery", Amount: 3.5, PaidBy: core.PartyPerson1,
		Category: core.CategoryUnclassified,
	}); err != nil {
		t.Fatal(err)
	}

	files := []importer.File{
		csvFile("may.csv", statement),
		csvFile("notes.docx", "irrelevant"),
	}
	p, err := svc.Preview(ctx, files, importer.Options{PaidBy: core.PartyPerson1, Card: "Visa"})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(p.New) != 2 || len(p.Duplicates) != 1 {
		t.Fatalf("new=%d duplicates=%d, want 2/1", len(p.New), len(p.Duplicates))
	}
	if p.AutoClassified != 1 {
		t.Fatalf("autoClassified = %d, want 1", p.AutoClassified)
	}
	if len(p.Problems) != 1 || p.Problems[0].File != "notes.docx" {
		t.Fatalf("problems = %+v", p.Problems)
	}

	c, err := svc.Commit(ctx, p.ID, false)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(c.Imported) != 2 || c.DuplicatesSkipped != 1 {
		t.Fatalf("committed %+v", c)
	}
	if len(st.Snapshot()) != 3 {
		t.Fatalf("store holds %d transactions, want 3", len(st.Snapshot()))
	}
	if pub.count() != 2 {
		t.Fatalf("published %d, want 2", pub.count())
	}

	if _, err := svc.Commit(ctx, p.ID, false); !errors.Is(err, ErrPreviewNotFound) {
		t.Fatalf("second commit: %v", err)
	}
}

func TestCommitIncludingDuplicates(t *testing.T) {
	ctx := context.Background()
	svc, st, _, _ := newImportService(t)

	first, err := svc.Preview(ctx, []importer.File{csvFile("a.csv", statement)}, importer.Options{PaidBy: core.PartyPerson2})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Commit(ctx, first.ID, false); err != nil {
		t.Fatal(err)
	}

	again, err := svc.Preview(ctx, []importer.File{csvFile("a.csv", statement)}, importer.Options{PaidBy: core.PartyPerson2})
	if err != nil {
		t.Fatal(err)
	}
	if len(again.New) != 0 || len(again.Duplicates) != 3 {
		t.Fatalf("re-import new=%d dup=%d", len(again.New), len(again.Duplicates))
	}
	c, err := svc.Commit(ctx, again.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Imported) != 3 || len(st.Snapshot()) != 6 {
		t.Fatalf("imported %d, store %d", len(c.Imported), len(st.Snapshot()))
	}
}

func TestPreviewRequiresFilesAndParty(t *testing.T) {
	svc, _, _, _ := newImportService(t)
	ctx := context.Background()

	if _, err := svc.Preview(ctx, nil, importer.Options{PaidBy: core.PartyPerson1}); !errors.Is(err, ErrNoFiles) {
		t.Fatalf("expected ErrNoFiles, got %v", err)
	}
	_, err := svc.Preview(ctx, []importer.File{csvFile("a.csv", statement)}, importer.Options{PaidBy: "nobody"})
	if !errors.Is(err, core.ErrInvalidParty) {
		t.Fatalf("expected ErrInvalidParty, got %v", err)
	}
}

func TestDiscard(t *testing.T) {
	svc, _, _, _ := newImportService(t)
	ctx := context.Background()

	p, err := svc.Preview(ctx, []importer.File{csvFile("a.csv", statement)}, importer.Options{PaidBy: core.PartyPerson1})
	if err != nil {
		t.Fatal(err)
	}
	svc.Discard(p.ID)
	if _, err := svc.Commit(ctx, p.ID, false); !errors.Is(err, ErrPreviewNotFound) {
		t.Fatalf("expected not found after discard, got %v", err)
	}
}
