// Package memory is an in-process stand-in for the spreadsheet export.
package memory

import (
	"context"
	"sync"

	"conto/internal/core"
	"conto/internal/sheets"
)

var (
	_ sheets.TransactionExporter = (*Sheet)(nil)
	_ sheets.SettlementWriter    = (*Sheet)(nil)
)

// Sheet keeps mirrored rows in insertion order, like a spreadsheet would.
type Sheet struct {
	mu       sync.Mutex
	order    []string
	rows     map[string]core.Transaction
	summary  *sheets.Summary
	writes   int
	failWith error
}

func New() *Sheet {
	return &Sheet{rows: make(map[string]core.Transaction)}
}

// FailWith makes every later call return err; nil restores normal behavior.
func (s *Sheet) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *Sheet) Upsert(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if _, ok := s.rows[t.ID]; !ok {
		s.order = append(s.order, t.ID)
	}
	s.rows[t.ID] = t
	s.writes++
	return nil
}

func (s *Sheet) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if _, ok := s.rows[id]; !ok {
		return nil
	}
	delete(s.rows, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.writes++
	return nil
}

func (s *Sheet) WriteSettlement(_ context.Context, sum sheets.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.summary = &sum
	return nil
}

// Rows returns the mirrored transactions in sheet order.
func (s *Sheet) Rows() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.rows[id])
	}
	return out
}

// Summary returns the last settlement written, if any.
func (s *Sheet) Summary() (sheets.Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary == nil {
		return sheets.Summary{}, false
	}
	return *s.summary, true
}

// Writes counts successful row changes.
func (s *Sheet) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
