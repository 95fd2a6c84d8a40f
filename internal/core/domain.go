package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the normalized transaction date format.
const DateLayout = "2006-01-02"

// SourceManual marks transactions entered by hand rather than imported.
const SourceManual = "manual"

const (
	CategoryPerson1      Category = "person1"
	CategoryPerson2      Category = "person2"
	CategoryShared       Category = "shared"
	CategoryUnclassified Category = "UNCLASSIFIED"
)

const (
	PartyPerson1 Party = "person1"
	PartyPerson2 Party = "person2"
)

type (
	// Category says whose expense a transaction conceptually is.
	Category string

	// Party identifies whose payment instrument was charged.
	Party string

	Transaction struct {
		ID              string    `json:"id"`
		Date            string    `json:"date"`
		Description     string    `json:"description"`
		Amount          float64   `json:"amount"`
		Category        Category  `json:"category"`
		PaidBy          Party     `json:"paidBy"`
		IsClassified    bool      `json:"isClassified"`
		Card            string    `json:"card,omitempty"`
		AutoAppliedRule bool      `json:"autoAppliedRule"`
		Source          string    `json:"source,omitempty"`
		CreatedAt       time.Time `json:"createdAt"`
		UpdatedAt       time.Time `json:"updatedAt"`
	}
)

var (
	ErrInvalidCategory     = errors.New("invalid category")
	ErrInvalidParty        = errors.New("invalid party")
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyDescription    = errors.New("empty description")
	ErrClassificationState = errors.New("classification flag does not match category")
)

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{CategoryPerson1, CategoryPerson2, CategoryShared, CategoryUnclassified}
}

// ParseCategory accepts any casing of the four category names.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "person1":
		return CategoryPerson1, nil
	case "person2":
		return CategoryPerson2, nil
	case "shared":
		return CategoryShared, nil
	case "unclassified":
		return CategoryUnclassified, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
}

func (c Category) Valid() bool {
	switch c {
	case CategoryPerson1, CategoryPerson2, CategoryShared, CategoryUnclassified:
		return true
	default:
		return false
	}
}

func (c Category) String() string {
	return string(c)
}

// Party returns the party owning an individual category, or false for
// shared and unclassified.
func (c Category) Party() (Party, bool) {
	switch c {
	case CategoryPerson1:
		return PartyPerson1, true
	case CategoryPerson2:
		return PartyPerson2, true
	default:
		return "", false
	}
}

func ParseParty(s string) (Party, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "person1":
		return PartyPerson1, nil
	case "person2":
		return PartyPerson2, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidParty, s)
	}
}

func (p Party) Valid() bool {
	return p == PartyPerson1 || p == PartyPerson2
}

func (p Party) String() string {
	return string(p)
}

// Other returns the counterpart of p.
func (p Party) Other() Party {
	if p == PartyPerson1 {
		return PartyPerson2
	}
	return PartyPerson1
}

// Classify sets the category and keeps IsClassified consistent with it.
func (t *Transaction) Classify(c Category, autoApplied bool) {
	t.Category = c
	t.IsClassified = c != CategoryUnclassified
	t.AutoAppliedRule = autoApplied && t.IsClassified
}

func (t Transaction) Validate() error {
	if _, err := time.Parse(DateLayout, t.Date); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, t.Date)
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	if t.Amount < 0 {
		return ErrInvalidAmount
	}
	if !t.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, t.Category)
	}
	if !t.PaidBy.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidParty, t.PaidBy)
	}
	if t.IsClassified != (t.Category != CategoryUnclassified) {
		return ErrClassificationState
	}
	return nil
}
