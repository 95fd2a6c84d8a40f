package report

import (
	"bytes"
	"testing"
	"time"

	"conto/internal/core"
	"conto/internal/settlement"
)

func TestSettlementPDF(t *testing.T) {
	txs := []core.Transaction{
		{Date: "2024-01-01", Description: "Rent", Amount: 1000, Category: core.CategoryShared, PaidBy: core.PartyPerson1, IsClassified: true},
		{Date: "2024-01-02", Description: "Café", Amount: 8.5, Category: core.CategoryUnclassified, PaidBy: core.PartyPerson2},
	}
	p := core.ProportionSettings{P1: 45, P2: 55}
	r := settlement.Calculate(txs, p)

	var buf bytes.Buffer
	err := SettlementPDF(&buf, r, p, Names{Person1: "Zoë", Person2: "Ben"}, time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a PDF: %q", buf.Bytes()[:min(16, buf.Len())])
	}
}

func TestHeadline(t *testing.T) {
	names := Names{Person1: "Ana", Person2: "Ben"}
	tests := []struct {
		name string
		r    settlement.Result
		want string
	}{
		{"settled", settlement.Result{}, "All settled up."},
		{"person2 pays", settlement.Result{FinalSettlement: 65, Direction: settlement.Person2ToPerson1}, "Ben owes Ana 65.00"},
		{"person1 pays", settlement.Result{FinalSettlement: 12.5, Direction: settlement.Person1ToPerson2}, "Ana owes Ben 12.50"},
	}
	for _, tt := range tests {
		if got := headline(tt.r, names); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestTrimPercent(t *testing.T) {
	for in, want := range map[float64]string{50: "50", 45.5: "45.5", 33.33: "33.33", 0: "0"} {
		if got := trimPercent(in); got != want {
			t.Errorf("trimPercent(%v) = %q, want %q", in, got, want)
		}
	}
}
