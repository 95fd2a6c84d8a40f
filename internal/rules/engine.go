// Package rules remembers how merchants and cards were categorized and
// applies that knowledge to newly imported transactions.
package rules

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"conto/internal/core"
)

// SuggestionThreshold is how many manual categorizations of the same merchant
// into the same category it takes before a rule is offered.
const SuggestionThreshold = 3

var (
	ErrEmptyKey         = errors.New("rule key is empty")
	ErrUnclassifiedRule = errors.New("rules cannot target the unclassified category")
)

// Rule maps a normalized merchant description or card name to a category.
type Rule struct {
	Key      string        `json:"key"`
	Category core.Category `json:"category"`
}

// Usage is one (merchant, category) counter entry.
type Usage struct {
	Merchant string        `json:"merchant"`
	Category core.Category `json:"category"`
	Count    int           `json:"count"`
}

// Applied pairs a transaction with whether a rule categorized it.
type Applied struct {
	Transaction    core.Transaction `json:"transaction"`
	WasAutoApplied bool             `json:"wasAutoApplied"`
}

// RuleStore persists the engine state.
type RuleStore interface {
	LoadRules(ctx context.Context) (merchant []Rule, card []Rule, usage []Usage, err error)
	SaveMerchantRule(ctx context.Context, r Rule) error
	DeleteMerchantRule(ctx context.Context, key string) error
	SaveCardRule(ctx context.Context, r Rule) error
	DeleteCardRule(ctx context.Context, key string) error
	SaveUsage(ctx context.Context, u Usage) error
}

type usageKey struct {
	merchant string
	category core.Category
}

// Engine holds rules and usage counters in memory and writes every change
// through to its RuleStore. A failed write is returned but the in-memory
// change is kept.
type Engine struct {
	store RuleStore

	mu       sync.RWMutex
	merchant map[string]core.Category
	card     map[string]core.Category
	usage    map[usageKey]int
}

func NewEngine(store RuleStore) *Engine {
	return &Engine{
		store:    store,
		merchant: make(map[string]core.Category),
		card:     make(map[string]core.Category),
		usage:    make(map[usageKey]int),
	}
}

// Normalize is the key form used for merchants and cards.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Load replaces the in-memory state with what the store holds.
func (e *Engine) Load(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	merchant, card, usage, err := e.store.LoadRules(ctx)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.merchant = make(map[string]core.Category, len(merchant))
	for _, r := range merchant {
		e.merchant[Normalize(r.Key)] = r.Category
	}
	e.card = make(map[string]core.Category, len(card))
	for _, r := range card {
		e.card[Normalize(r.Key)] = r.Category
	}
	e.usage = make(map[usageKey]int, len(usage))
	for _, u := range usage {
		e.usage[usageKey{Normalize(u.Merchant), u.Category}] = u.Count
	}
	return nil
}

// TrackCategorization records one manual categorization of merchant. Only
// categories a rule could target are counted.
func (e *Engine) TrackCategorization(ctx context.Context, merchant string, c core.Category) error {
	r, err := newRule(merchant, c)
	if err != nil {
		return err
	}
	key := r.Key

	e.mu.Lock()
	uk := usageKey{key, c}
	e.usage[uk]++
	count := e.usage[uk]
	e.mu.Unlock()

	if e.store == nil {
		return nil
	}
	if err := e.store.SaveUsage(ctx, Usage{Merchant: key, Category: c, Count: count}); err != nil {
		return fmt.Errorf("save usage: %w", err)
	}
	return nil
}

// ShouldSuggestRule is true once merchant has been put in category c
// SuggestionThreshold times and no merchant rule exists for it yet.
func (e *Engine) ShouldSuggestRule(merchant string, c core.Category) bool {
	key := Normalize(merchant)

	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, ok := e.merchant[key]; ok {
		return false
	}
	return e.usage[usageKey{key, c}] >= SuggestionThreshold
}

// UsageCount returns how often merchant was put into category c.
func (e *Engine) UsageCount(merchant string, c core.Category) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.usage[usageKey{Normalize(merchant), c}]
}

func (e *Engine) CreateRule(ctx context.Context, merchant string, c core.Category) error {
	r, err := newRule(merchant, c)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.merchant[r.Key] = r.Category
	e.mu.Unlock()

	if e.store == nil {
		return nil
	}
	if err := e.store.SaveMerchantRule(ctx, r); err != nil {
		return fmt.Errorf("save merchant rule: %w", err)
	}
	return nil
}

func (e *Engine) CreateCardRule(ctx context.Context, card string, c core.Category) error {
	r, err := newRule(card, c)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.card[r.Key] = r.Category
	e.mu.Unlock()

	if e.store == nil {
		return nil
	}
	if err := e.store.SaveCardRule(ctx, r); err != nil {
		return fmt.Errorf("save card rule: %w", err)
	}
	return nil
}

func (e *Engine) DeleteRule(ctx context.Context, merchant string) error {
	key := Normalize(merchant)
	e.mu.Lock()
	delete(e.merchant, key)
	e.mu.Unlock()

	if e.store == nil {
		return nil
	}
	if err := e.store.DeleteMerchantRule(ctx, key); err != nil {
		return fmt.Errorf("delete merchant rule: %w", err)
	}
	return nil
}

func (e *Engine) DeleteCardRule(ctx context.Context, card string) error {
	key := Normalize(card)
	e.mu.Lock()
	delete(e.card, key)
	e.mu.Unlock()

	if e.store == nil {
		return nil
	}
	if err := e.store.DeleteCardRule(ctx, key); err != nil {
		return fmt.Errorf("delete card rule: %w", err)
	}
	return nil
}

// Rules returns the merchant rules sorted by key.
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return sortedRules(e.merchant)
}

// CardRules returns the card rules sorted by key.
func (e *Engine) CardRules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return sortedRules(e.card)
}

// Match returns the category a rule would assign to t, merchant rules first.
func (e *Engine) Match(t core.Transaction) (core.Category, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.match(t)
}

func (e *Engine) match(t core.Transaction) (core.Category, bool) {
	if c, ok := e.merchant[Normalize(t.Description)]; ok {
		return c, true
	}
	if t.Card != "" {
		if c, ok := e.card[Normalize(t.Card)]; ok {
			return c, true
		}
	}
	return "", false
}

// ApplyRulesToTransactions categorizes every unclassified transaction a rule
// matches. Classified transactions pass through untouched. The input slice is
// not modified.
func (e *Engine) ApplyRulesToTransactions(list []core.Transaction) []Applied {
	out := make([]Applied, 0, len(list))

	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, t := range list {
		if t.Category != core.CategoryUnclassified {
			out = append(out, Applied{Transaction: t})
			continue
		}
		c, ok := e.match(t)
		if !ok {
			out = append(out, Applied{Transaction: t})
			continue
		}
		t.Classify(c, true)
		out = append(out, Applied{Transaction: t, WasAutoApplied: true})
	}
	return out
}

func newRule(key string, c core.Category) (Rule, error) {
	k := Normalize(key)
	if k == "" {
		return Rule{}, ErrEmptyKey
	}
	if !c.Valid() {
		return Rule{}, fmt.Errorf("%w: %q", core.ErrInvalidCategory, c)
	}
	if c == core.CategoryUnclassified {
		return Rule{}, ErrUnclassifiedRule
	}
	return Rule{Key: k, Category: c}, nil
}

func sortedRules(m map[string]core.Category) []Rule {
	out := make([]Rule, 0, len(m))
	for k, c := range m {
		out = append(out, Rule{Key: k, Category: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
