package google

import (
	"fmt"
	"strings"
	"time"

	"conto/internal/core"
	"conto/internal/sheets"
)

// Transactions sheet layout, A to J.
var transactionHeader = []any{
	"ID", "Date", "Description", "Amount", "Category", "Paid by", "Card", "Auto rule", "Source", "Updated",
}

const lastColumn = "J"

func transactionRow(t core.Transaction) []any {
	return []any{
		t.ID,
		t.Date,
		t.Description,
		core.Round2(t.Amount),
		string(t.Category),
		string(t.PaidBy),
		t.Card,
		t.AutoAppliedRule,
		t.Source,
		t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// findRow returns the 1-based sheet row holding id in column A, or 0.
func findRow(values [][]any, id string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return 0
}

// nextFreeRow is the row after the last non-empty row in column A.
func nextFreeRow(values [][]any) int {
	last := 0
	for i, row := range values {
		if len(row) > 0 && strings.TrimSpace(fmt.Sprint(row[0])) != "" {
			last = i + 1
		}
	}
	return last + 1
}

func name(n, fallback string) string {
	if strings.TrimSpace(n) == "" {
		return fallback
	}
	return n
}

// settlementRows renders the summary as label/value pairs.
func settlementRows(s sheets.Summary) [][]any {
	r := s.Result.Rounded()
	p1, p2 := name(s.Person1Name, "Person 1"), name(s.Person2Name, "Person 2")

	who := "Settled"
	if payer, ok := r.Payer(); ok {
		from, to := p1, p2
		if payer == core.PartyPerson2 {
			from, to = p2, p1
		}
		who = fmt.Sprintf("%s pays %s", from, to)
	}

	return [][]any{
		{"Settlement", s.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Split", fmt.Sprintf("%s %s%% / %s %s%%", p1, core.FormatAmount(s.Proportions.P1), p2, core.FormatAmount(s.Proportions.P2))},
		{"Total spending", r.TotalSpending},
		{"Shared total", r.SharedTotal},
		{p1 + " individual", r.Person1Individual},
		{p2 + " individual", r.Person2Individual},
		{p1 + " share of shared", r.Person1ShareOfShared},
		{p2 + " share of shared", r.Person2ShareOfShared},
		{p1 + " should pay", r.Person1ShouldPay},
		{p2 + " should pay", r.Person2ShouldPay},
		{p1 + " paid", r.Person1ActuallyPaid},
		{p2 + " paid", r.Person2ActuallyPaid},
		{"Unclassified", fmt.Sprintf("%d (%s)", r.UnclassifiedCount, core.FormatAmount(r.UnclassifiedTotal))},
		{"Direction", string(r.Direction)},
		{"Amount", r.FinalSettlement},
		{"Result", who},
	}
}
