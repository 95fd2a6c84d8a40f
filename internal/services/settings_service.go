package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"conto/internal/core"
)

// SettingsStore persists the proportion settings.
type SettingsStore interface {
	LoadProportions(ctx context.Context) (core.ProportionSettings, error)
	SaveProportions(ctx context.Context, p core.ProportionSettings) error
}

// SettingsService guards writes with validation and repairs whatever
// storage hands back on reads.
type SettingsService struct {
	store SettingsStore
}

func NewSettingsService(store SettingsStore) *SettingsService {
	return &SettingsService{store: store}
}

// Proportions returns the stored split, normalized so it sums to 100. A
// storage failure falls back to the default split.
func (s *SettingsService) Proportions(ctx context.Context) core.ProportionSettings {
	p, err := s.store.LoadProportions(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to load proportions, using default", "error", err)
		return core.DefaultProportions()
	}
	n := p.Normalize()
	if n != p {
		slog.WarnContext(ctx, "Stored proportions repaired",
			"stored_p1", p.P1, "stored_p2", p.P2, "p1", n.P1, "p2", n.P2)
	}
	return n
}

// SetProportions rejects anything that does not validate.
func (s *SettingsService) SetProportions(ctx context.Context, p core.ProportionSettings) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := s.store.SaveProportions(ctx, p); err != nil {
		return fmt.Errorf("save proportions: %w", err)
	}
	slog.InfoContext(ctx, "Proportions updated", "p1", p.P1, "p2", p.P2)
	return nil
}

// MemorySettings keeps settings in process memory.
type MemorySettings struct {
	mu sync.Mutex
	p  *core.ProportionSettings
}

func NewMemorySettings() *MemorySettings {
	return &MemorySettings{}
}

func (m *MemorySettings) LoadProportions(_ context.Context) (core.ProportionSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.p == nil {
		return core.DefaultProportions(), nil
	}
	return *m.p, nil
}

func (m *MemorySettings) SaveProportions(_ context.Context, p core.ProportionSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.p = &p
	return nil
}
