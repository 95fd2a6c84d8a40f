package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"conto/internal/amqp"
	"conto/internal/core"
	"conto/internal/metrics"
	"conto/internal/rules"
	"conto/internal/settlement"
	"conto/internal/store"
)

// SyncPublisher announces changed transactions to the sync worker.
type SyncPublisher interface {
	PublishTransactionSync(ctx context.Context, id, operation string) error
}

// TransactionService orchestrates transaction operations across the store,
// the rule engine and the sync queue
type TransactionService struct {
	store     *store.Store
	rules     *rules.Engine
	settings  *SettingsService
	publisher SyncPublisher
	metrics   *metrics.Metrics
}

func NewTransactionService(st *store.Store, engine *rules.Engine, settings *SettingsService, publisher SyncPublisher, m *metrics.Metrics) *TransactionService {
	return &TransactionService{
		store:     st,
		rules:     engine,
		settings:  settings,
		publisher: publisher,
		metrics:   m,
	}
}

// NewTransaction is a manually entered transaction.
type NewTransaction struct {
	Date        string        `json:"date"`
	Description string        `json:"description"`
	Amount      float64       `json:"amount"`
	PaidBy      core.Party    `json:"paidBy"`
	Category    core.Category `json:"category,omitempty"`
	Card        string        `json:"card,omitempty"`
}

// Categorized is the outcome of a manual categorization.
type Categorized struct {
	Transaction   core.Transaction `json:"transaction"`
	SuggestRule   bool             `json:"suggestRule"`
	UsageCount    int              `json:"usageCount"`
	SuggestionFor string           `json:"suggestionFor,omitempty"`
}

// Report is a settlement with the proportions it was computed with.
type Report struct {
	settlement.Result
	Proportions core.ProportionSettings `json:"proportions"`
	Settled     bool                    `json:"settled"`
	Balanced    bool                    `json:"balanced"`
}

// List returns the transactions, optionally restricted to one category.
func (s *TransactionService) List(category core.Category) []core.Transaction {
	all := s.store.Snapshot()
	if category == "" {
		return all
	}
	out := make([]core.Transaction, 0, len(all))
	for _, t := range all {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// Create stores a manual transaction. Without a category a matching rule is
// applied, otherwise it stays unclassified. A persistence failure is
// returned wrapped in store.ErrPersist together with the stored copy.
func (s *TransactionService) Create(ctx context.Context, in NewTransaction) (core.Transaction, error) {
	t := core.Transaction{
		Date:        in.Date,
		Description: in.Description,
		Amount:      in.Amount,
		PaidBy:      in.PaidBy,
		Card:        in.Card,
		Source:      core.SourceManual,
	}
	switch {
	case in.Category != "" && in.Category != core.CategoryUnclassified:
		t.Classify(in.Category, false)
	default:
		if c, ok := s.rules.Match(t); ok {
			t.Classify(c, true)
			s.metrics.ObserveRuleHits(1)
		} else {
			t.Classify(core.CategoryUnclassified, false)
		}
	}

	added, err := s.store.Add(ctx, t)
	if len(added) == 0 {
		return core.Transaction{}, err
	}
	s.afterWrite(ctx, err)
	s.publish(ctx, added[0].ID, amqp.OpUpsert)
	slog.InfoContext(ctx, "Transaction created", "id", added[0].ID, "category", added[0].Category)
	return added[0], err
}

// Categorize sets a category by hand, counts it toward the merchant's usage
// and reports whether a rule should now be offered.
func (s *TransactionService) Categorize(ctx context.Context, id string, c core.Category) (Categorized, error) {
	t, err := s.store.UpdateCategory(ctx, id, c, false)
	if err != nil && !errors.Is(err, store.ErrPersist) {
		return Categorized{}, err
	}
	s.afterWrite(ctx, err)
	s.publish(ctx, id, amqp.OpUpsert)

	out := Categorized{Transaction: t}
	if c == core.CategoryUnclassified {
		return out, err
	}

	if trackErr := s.rules.TrackCategorization(ctx, t.Description, c); trackErr != nil {
		if errors.Is(trackErr, rules.ErrEmptyKey) {
			return out, err
		}
		slog.ErrorContext(ctx, "Failed to save categorization usage", "id", id, "error", trackErr)
	}
	out.UsageCount = s.rules.UsageCount(t.Description, c)
	if s.rules.ShouldSuggestRule(t.Description, c) {
		out.SuggestRule = true
		out.SuggestionFor = rules.Normalize(t.Description)
	}
	return out, err
}

func (s *TransactionService) Delete(ctx context.Context, id string) error {
	err := s.store.Delete(ctx, id)
	if err != nil && !errors.Is(err, store.ErrPersist) {
		return err
	}
	s.afterWrite(ctx, err)
	s.publish(ctx, id, amqp.OpDelete)
	return err
}

// Settlement computes who owes whom over every stored transaction.
func (s *TransactionService) Settlement(ctx context.Context) Report {
	p := s.settings.Proportions(ctx)
	res := settlement.Calculate(s.store.Snapshot(), p)
	return Report{
		Result:      res.Rounded(),
		Proportions: p,
		Settled:     settlement.IsSettled(res),
		Balanced:    settlement.CheckBalance(res) == nil,
	}
}

// ApplyRules categorizes every unclassified transaction a rule matches and
// returns how many changed.
func (s *TransactionService) ApplyRules(ctx context.Context) (int, error) {
	applied := s.rules.ApplyRulesToTransactions(s.store.Snapshot())

	var (
		changed int
		errs    []error
	)
	for _, a := range applied {
		if !a.WasAutoApplied {
			continue
		}
		_, err := s.store.ClassifyIfUnclassified(ctx, a.Transaction.ID, a.Transaction.Category)
		if errors.Is(err, store.ErrAlreadyClassified) || errors.Is(err, store.ErrNotFound) {
			// categorized or deleted since the snapshot
			continue
		}
		if err != nil && !errors.Is(err, store.ErrPersist) {
			errs = append(errs, err)
			continue
		}
		s.afterWrite(ctx, err)
		if err != nil {
			errs = append(errs, err)
		}
		s.publish(ctx, a.Transaction.ID, amqp.OpUpsert)
		changed++
	}
	s.metrics.ObserveRuleHits(changed)
	slog.InfoContext(ctx, "Rules applied to existing transactions", "changed", changed)

	if len(errs) > 0 {
		return changed, fmt.Errorf("apply rules: %w", errors.Join(errs...))
	}
	return changed, nil
}

func (s *TransactionService) afterWrite(ctx context.Context, err error) {
	if errors.Is(err, store.ErrPersist) {
		s.metrics.ObservePersistFailure()
		slog.WarnContext(ctx, "Change kept locally but not persisted", "error", err)
	}
}

func (s *TransactionService) publish(ctx context.Context, id, op string) {
	publishSync(ctx, s.publisher, id, op)
}

func publishSync(ctx context.Context, p SyncPublisher, id, op string) {
	if p == nil {
		return
	}
	if err := p.PublishTransactionSync(ctx, id, op); err != nil {
		// the sweeper picks the row up from sync_state later
		slog.ErrorContext(ctx, "Failed to publish sync message", "id", id, "operation", op, "error", err)
	}
}
