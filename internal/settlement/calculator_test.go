package settlement

import (
	"math"
	"testing"

	"conto/internal/core"
)

func tx(cat core.Category, paidBy core.Party, amount float64) core.Transaction {
	t := core.Transaction{Date: "2024-03-01", Description: "x", Amount: amount, PaidBy: paidBy}
	t.Classify(cat, false)
	return t
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCalculateEmpty(t *testing.T) {
	r := Calculate(nil, core.DefaultProportions())
	if r.TotalSpending != 0 || r.FinalSettlement != 0 || r.Person1NetPosition != 0 {
		t.Fatalf("expected zero result, got %+v", r)
	}
	if r.Direction != Person2ToPerson1 {
		t.Fatalf("expected direction %s for empty input, got %s", Person2ToPerson1, r.Direction)
	}
	if !IsSettled(r) {
		t.Fatal("empty input should be settled")
	}
}

func TestCalculateFixture(t *testing.T) {
	txs := []core.Transaction{
		tx(core.CategoryShared, core.PartyPerson1, 100),
		tx(core.CategoryShared, core.PartyPerson2, 80),
		tx(core.CategoryShared, core.PartyPerson1, 120),
		tx(core.CategoryPerson1, core.PartyPerson2, 50),
		tx(core.CategoryPerson1, core.PartyPerson1, 15),
		tx(core.CategoryPerson2, core.PartyPerson1, 30),
		tx(core.CategoryPerson2, core.PartyPerson2, 25),
	}
	r := Calculate(txs, core.ProportionSettings{P1: 45, P2: 55})

	checks := []struct {
		name      string
		got, want float64
	}{
		{"sharedTotal", r.SharedTotal, 300},
		{"person1Individual", r.Person1Individual, 65},
		{"person2Individual", r.Person2Individual, 55},
		{"person1ShareOfShared", r.Person1ShareOfShared, 135},
		{"person2ShareOfShared", r.Person2ShareOfShared, 165},
		{"person1ShouldPay", r.Person1ShouldPay, 200},
		{"person2ShouldPay", r.Person2ShouldPay, 220},
		{"person1ActuallyPaid", r.Person1ActuallyPaid, 265},
		{"person2ActuallyPaid", r.Person2ActuallyPaid, 155},
		{"person1Net", r.Person1NetPosition, -65},
		{"person2Net", r.Person2NetPosition, 65},
		{"final", r.FinalSettlement, 65},
		{"totalSpending", r.TotalSpending, 420},
	}
	for _, c := range checks {
		if !approx(c.got, c.want) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if r.Direction != Person2ToPerson1 {
		t.Fatalf("direction = %s, want %s", r.Direction, Person2ToPerson1)
	}
	if payer, ok := r.Payer(); !ok || payer != core.PartyPerson2 {
		t.Fatalf("payer = %s/%v, want person2", payer, ok)
	}
	if err := CheckBalance(r); err != nil {
		t.Fatalf("fixture should balance: %v", err)
	}
}

func TestCalculateProperties(t *testing.T) {
	cases := []struct {
		name string
		txs  []core.Transaction
		p    core.ProportionSettings
	}{
		{
			name: "only shared paid by person1",
			txs: []core.Transaction{
				tx(core.CategoryShared, core.PartyPerson1, 40),
				tx(core.CategoryShared, core.PartyPerson1, 60.5),
			},
			p: core.DefaultProportions(),
		},
		{
			name: "mixed uneven split",
			txs: []core.Transaction{
				tx(core.CategoryShared, core.PartyPerson2, 12.34),
				tx(core.CategoryPerson1, core.PartyPerson2, 9.99),
				tx(core.CategoryPerson2, core.PartyPerson1, 0.01),
				tx(core.CategoryShared, core.PartyPerson1, 1000),
			},
			p: core.ProportionSettings{P1: 70, P2: 30},
		},
		{
			name: "person1 owes",
			txs: []core.Transaction{
				tx(core.CategoryPerson1, core.PartyPerson2, 200),
			},
			p: core.DefaultProportions(),
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := Calculate(c.txs, c.p)

			shouldSum := r.Person1ShouldPay + r.Person2ShouldPay
			if math.Abs(shouldSum-r.TotalSpending) >= 0.01 {
				t.Errorf("conservation: shouldPay sum %v != total %v", shouldSum, r.TotalSpending)
			}
			if math.Abs(r.Person1NetPosition+r.Person2NetPosition) >= 0.01 {
				t.Errorf("symmetry: nets %v and %v", r.Person1NetPosition, r.Person2NetPosition)
			}
			if math.Abs(r.FinalSettlement-math.Abs(r.Person2NetPosition)) >= 0.01 {
				t.Errorf("final %v does not match person2 net %v", r.FinalSettlement, r.Person2NetPosition)
			}

			again := Calculate(c.txs, c.p)
			if again != r {
				t.Errorf("idempotence: %+v != %+v", again, r)
			}
		})
	}
}

func TestCalculateDirection(t *testing.T) {
	r := Calculate([]core.Transaction{tx(core.CategoryPerson1, core.PartyPerson2, 200)}, core.DefaultProportions())
	if r.Direction != Person1ToPerson2 || !approx(r.FinalSettlement, 200) {
		t.Fatalf("got %s %v, want person1ToPerson2 200", r.Direction, r.FinalSettlement)
	}
}

func TestUnclassifiedExcludedFromSettlement(t *testing.T) {
	txs := []core.Transaction{
		tx(core.CategoryShared, core.PartyPerson1, 100),
		tx(core.CategoryUnclassified, core.PartyPerson2, 40),
	}
	r := Calculate(txs, core.DefaultProportions())

	if !approx(r.TotalSpending, 100) {
		t.Fatalf("total = %v, want 100", r.TotalSpending)
	}
	if r.Person2ActuallyPaid != 0 {
		t.Fatalf("person2 paid = %v, want 0", r.Person2ActuallyPaid)
	}
	if r.UnclassifiedCount != 1 || !approx(r.UnclassifiedTotal, 40) {
		t.Fatalf("unclassified = %d/%v, want 1/40", r.UnclassifiedCount, r.UnclassifiedTotal)
	}
	if err := CheckBalance(r); err != nil {
		t.Fatalf("CheckBalance: %v", err)
	}
}

func TestUnclassifiedDoesNotMoveSettlement(t *testing.T) {
	base := []core.Transaction{
		tx(core.CategoryShared, core.PartyPerson1, 100),
		tx(core.CategoryShared, core.PartyPerson2, 100),
	}
	before := Calculate(base, core.DefaultProportions())

	withPending := append(append([]core.Transaction{}, base...), tx(core.CategoryUnclassified, core.PartyPerson1, 500))
	after := Calculate(withPending, core.DefaultProportions())

	if !approx(before.FinalSettlement, 0) || !approx(after.FinalSettlement, before.FinalSettlement) {
		t.Fatalf("settlement moved: %v -> %v", before.FinalSettlement, after.FinalSettlement)
	}
	if !approx(after.Person1ActuallyPaid, 100) {
		t.Fatalf("person1 paid = %v, want 100", after.Person1ActuallyPaid)
	}
}

func TestIsSettled(t *testing.T) {
	cases := []struct {
		amount float64
		want   bool
	}{
		{0, true},
		{0.009, true},
		{0.01, false},
		{5, false},
	}
	for _, c := range cases {
		if got := IsSettled(Result{FinalSettlement: c.amount}); got != c.want {
			t.Errorf("IsSettled(%v) = %v, want %v", c.amount, got, c.want)
		}
	}
}

func TestRounded(t *testing.T) {
	r := Result{SharedTotal: 10.005, FinalSettlement: 3.333333}.Rounded()
	if r.SharedTotal != 10.01 || r.FinalSettlement != 3.33 {
		t.Fatalf("rounded = %v %v", r.SharedTotal, r.FinalSettlement)
	}
}
