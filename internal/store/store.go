// Package store keeps the working set of transactions in memory and writes
// changes through to a Repository.
//
// Mutations are applied locally first and then persisted once. When the
// write fails the local change stays and the error is returned wrapped in
// ErrPersist, so local state may run ahead of the repository. Concurrent
// writers are last-write-wins.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"conto/internal/core"
)

// DefaultInitTimeout bounds the initial load.
const DefaultInitTimeout = 5 * time.Second

var (
	ErrNotFound          = errors.New("transaction not found")
	ErrPersist           = errors.New("persist transaction change")
	ErrAlreadyClassified = errors.New("transaction already classified")
)

// Repository is the durable side of the store.
type Repository interface {
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	InsertTransactions(ctx context.Context, txs []core.Transaction) error
	UpdateTransactionCategory(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
}

type Options struct {
	InitTimeout time.Duration
	Now         func() time.Time
}

type Store struct {
	repo        Repository
	initTimeout time.Duration
	now         func() time.Time

	mu    sync.RWMutex
	txs   []core.Transaction
	index map[string]int
	ready bool

	subMu  sync.Mutex
	nextID int
	subs   map[int]func([]core.Transaction)
}

func New(repo Repository, opts Options) *Store {
	if opts.InitTimeout <= 0 {
		opts.InitTimeout = DefaultInitTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		repo:        repo,
		initTimeout: opts.InitTimeout,
		now:         opts.Now,
		index:       make(map[string]int),
		subs:        make(map[int]func([]core.Transaction)),
	}
}

type listResult struct {
	txs []core.Transaction
	err error
}

// Load hydrates the store from the repository. It waits at most InitTimeout;
// on timeout or error the store proceeds with an empty set and the error is
// returned for the caller to report. The store is usable either way.
func (s *Store) Load(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.initTimeout)
	defer cancel()

	done := make(chan listResult, 1)
	go func() {
		txs, err := s.repo.ListTransactions(ctx)
		done <- listResult{txs, err}
	}()

	var res listResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	if res.err != nil {
		slog.WarnContext(ctx, "Proceeding with empty transaction set",
			"timeout", s.initTimeout, "error", res.err)
		res.txs = nil
	}

	s.mu.Lock()
	s.replace(res.txs)
	s.ready = true
	s.mu.Unlock()
	s.notify()

	if res.err != nil {
		return fmt.Errorf("load transactions: %w", res.err)
	}
	slog.InfoContext(ctx, "Transactions loaded", "count", len(res.txs))
	return nil
}

// Ready reports whether Load has completed, successfully or not.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Snapshot returns a copy of the current transactions.
func (s *Store) Snapshot() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

func (s *Store) Get(id string) (core.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return core.Transaction{}, false
	}
	return s.txs[i], true
}

// Subscribe registers fn to receive a snapshot after every change. fn runs
// synchronously on the mutating goroutine. The returned func unsubscribes.
func (s *Store) Subscribe(fn func([]core.Transaction)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

// Add validates and appends transactions, assigning IDs and timestamps. The
// stored copies are returned even when persisting fails.
func (s *Store) Add(ctx context.Context, txs ...core.Transaction) ([]core.Transaction, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	now := s.now().UTC()
	added := make([]core.Transaction, len(txs))
	for i, t := range txs {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.Source == "" {
			t.Source = core.SourceManual
		}
		t.CreatedAt, t.UpdatedAt = now, now
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		added[i] = t
	}

	s.mu.Lock()
	for _, t := range added {
		if i, ok := s.index[t.ID]; ok {
			s.txs[i] = t
			continue
		}
		s.index[t.ID] = len(s.txs)
		s.txs = append(s.txs, t)
	}
	s.mu.Unlock()
	s.notify()

	if err := s.repo.InsertTransactions(ctx, added); err != nil {
		slog.ErrorContext(ctx, "Failed to persist new transactions", "count", len(added), "error", err)
		return added, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return added, nil
}

// UpdateCategory reassigns a transaction's category.
func (s *Store) UpdateCategory(ctx context.Context, id string, c core.Category, autoApplied bool) (core.Transaction, error) {
	return s.updateCategory(ctx, id, c, autoApplied, false)
}

// ClassifyIfUnclassified applies a rule's category only while the transaction
// is still unclassified; otherwise it returns ErrAlreadyClassified and leaves
// the transaction untouched.
func (s *Store) ClassifyIfUnclassified(ctx context.Context, id string, c core.Category) (core.Transaction, error) {
	return s.updateCategory(ctx, id, c, true, true)
}

func (s *Store) updateCategory(ctx context.Context, id string, c core.Category, autoApplied, onlyUnclassified bool) (core.Transaction, error) {
	if !c.Valid() {
		return core.Transaction{}, fmt.Errorf("%w: %q", core.ErrInvalidCategory, c)
	}

	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return core.Transaction{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	t := s.txs[i]
	if onlyUnclassified && t.Category != core.CategoryUnclassified {
		s.mu.Unlock()
		return t, fmt.Errorf("%w: %s", ErrAlreadyClassified, id)
	}
	t.Classify(c, autoApplied)
	t.UpdatedAt = s.now().UTC()
	s.txs[i] = t
	s.mu.Unlock()
	s.notify()

	if err := s.repo.UpdateTransactionCategory(ctx, t); err != nil {
		slog.ErrorContext(ctx, "Failed to persist category change", "id", id, "error", err)
		return t, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return t, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rest := make([]core.Transaction, 0, len(s.txs)-1)
	rest = append(rest, s.txs[:i]...)
	rest = append(rest, s.txs[i+1:]...)
	s.replace(rest)
	s.mu.Unlock()
	s.notify()

	if err := s.repo.DeleteTransaction(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to persist deletion", "id", id, "error", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// replace swaps the working set; callers hold mu.
func (s *Store) replace(txs []core.Transaction) {
	s.txs = txs
	s.index = make(map[string]int, len(txs))
	for i, t := range txs {
		s.index[t.ID] = i
	}
}

func (s *Store) snapshot() []core.Transaction {
	out := make([]core.Transaction, len(s.txs))
	copy(out, s.txs)
	return out
}

func (s *Store) notify() {
	s.subMu.Lock()
	fns := make([]func([]core.Transaction), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	if len(fns) == 0 {
		return
	}

	snap := s.Snapshot()
	for _, fn := range fns {
		fn(snap)
	}
}
