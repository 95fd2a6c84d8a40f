// Package settlement computes who owes whom between the two parties.
package settlement

import (
	"errors"
	"fmt"
	"math"

	"conto/internal/core"
)

// Direction of the final transfer.
type Direction string

const (
	Person1ToPerson2 Direction = "person1ToPerson2"
	Person2ToPerson1 Direction = "person2ToPerson1"
)

// ErrUnbalanced means the categorized total differs from what the two
// parties actually paid, so the two net positions are not mirror images.
var ErrUnbalanced = errors.New("categorized spending does not match amounts paid")

// Result is recomputed from the transaction list on every call and never stored.
type Result struct {
	Person1Individual    float64   `json:"person1Individual"`
	Person2Individual    float64   `json:"person2Individual"`
	SharedTotal          float64   `json:"sharedTotal"`
	Person1ShareOfShared float64   `json:"person1ShareOfShared"`
	Person2ShareOfShared float64   `json:"person2ShareOfShared"`
	Person1ShouldPay     float64   `json:"person1ShouldPay"`
	Person2ShouldPay     float64   `json:"person2ShouldPay"`
	Person1ActuallyPaid  float64   `json:"person1ActuallyPaid"`
	Person2ActuallyPaid  float64   `json:"person2ActuallyPaid"`
	Person1NetPosition   float64   `json:"person1NetPosition"`
	Person2NetPosition   float64   `json:"person2NetPosition"`
	FinalSettlement      float64   `json:"finalSettlementAmount"`
	Direction            Direction `json:"settlementDirection"`
	TotalSpending        float64   `json:"totalSpending"`

	Person1Count      int     `json:"person1Count"`
	Person2Count      int     `json:"person2Count"`
	SharedCount       int     `json:"sharedCount"`
	UnclassifiedCount int     `json:"unclassifiedCount"`
	UnclassifiedTotal float64 `json:"unclassifiedTotal"`
}

// Calculate settles the transaction list under the given proportions.
//
// Algorithm:
//   - individual and shared totals come from the category buckets
//   - each share of shared = sharedTotal * p / 100, computed per party
//   - should pay = individual + share of shared
//   - actually paid = every transaction charged to that party, any category
//   - net = should pay - actually paid; positive means the party owes
//   - the settlement is |person1 net|, person1 pays only when its net is positive
//
// Proportions are used as given; callers are expected to pass a validated pair.
func Calculate(transactions []core.Transaction, p core.ProportionSettings) Result {
	var r Result

	for _, t := range transactions {
		switch t.Category {
		case core.CategoryPerson1:
			r.Person1Individual += t.Amount
			r.Person1Count++
		case core.CategoryPerson2:
			r.Person2Individual += t.Amount
			r.Person2Count++
		case core.CategoryShared:
			r.SharedTotal += t.Amount
			r.SharedCount++
		default:
			// counted for prompting only, never part of the settlement
			r.UnclassifiedTotal += t.Amount
			r.UnclassifiedCount++
			continue
		}

		switch t.PaidBy {
		case core.PartyPerson1:
			r.Person1ActuallyPaid += t.Amount
		case core.PartyPerson2:
			r.Person2ActuallyPaid += t.Amount
		}
	}

	r.Person1ShareOfShared = r.SharedTotal * p.P1 / 100
	r.Person2ShareOfShared = r.SharedTotal * p.P2 / 100

	r.Person1ShouldPay = r.Person1Individual + r.Person1ShareOfShared
	r.Person2ShouldPay = r.Person2Individual + r.Person2ShareOfShared

	r.Person1NetPosition = r.Person1ShouldPay - r.Person1ActuallyPaid
	r.Person2NetPosition = r.Person2ShouldPay - r.Person2ActuallyPaid

	r.FinalSettlement = math.Abs(r.Person1NetPosition)
	if r.Person1NetPosition > 0 {
		r.Direction = Person1ToPerson2
	} else {
		r.Direction = Person2ToPerson1
	}

	r.TotalSpending = r.Person1Individual + r.Person2Individual + r.SharedTotal
	return r
}

// IsSettled reports whether nothing meaningful is left to transfer.
func IsSettled(r Result) bool {
	return r.FinalSettlement < core.SettledEpsilon
}

// CheckBalance verifies the precondition under which both net positions
// mirror each other: every categorized amount was paid by one of the parties.
func CheckBalance(r Result) error {
	paid := r.Person1ActuallyPaid + r.Person2ActuallyPaid
	if core.NearlyEqual(r.TotalSpending, paid) {
		return nil
	}
	return fmt.Errorf("%w: spending %s, paid %s", ErrUnbalanced,
		core.FormatAmount(r.TotalSpending), core.FormatAmount(paid))
}

// Payer returns the party that must transfer money, and false when settled.
func (r Result) Payer() (core.Party, bool) {
	if IsSettled(r) {
		return "", false
	}
	if r.Direction == Person1ToPerson2 {
		return core.PartyPerson1, true
	}
	return core.PartyPerson2, true
}

// Rounded returns a copy with every monetary field rounded for display.
func (r Result) Rounded() Result {
	out := r
	for _, f := range []*float64{
		&out.Person1Individual, &out.Person2Individual, &out.SharedTotal,
		&out.Person1ShareOfShared, &out.Person2ShareOfShared,
		&out.Person1ShouldPay, &out.Person2ShouldPay,
		&out.Person1ActuallyPaid, &out.Person2ActuallyPaid,
		&out.Person1NetPosition, &out.Person2NetPosition,
		&out.FinalSettlement, &out.TotalSpending, &out.UnclassifiedTotal,
	} {
		*f = core.Round2(*f)
	}
	return out
}
