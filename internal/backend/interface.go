package backend

import (
	"context"

	"conto/internal/rules"
	"conto/internal/services"
	"conto/internal/storage"
	"conto/internal/store"
)

// Backend bundles the persistence ports the application is built on.
type Backend struct {
	Transactions store.Repository
	Rules        rules.RuleStore
	Settings     services.SettingsStore

	// SQLite is set for the sqlite backend only; the sync worker and
	// readiness checks need it.
	SQLite *storage.SQLiteRepository

	Cleanup CleanupFunc
}

// Ping reports whether the backend is usable. The memory backend always is.
func (b *Backend) Ping(ctx context.Context) error {
	if b.SQLite == nil {
		return nil
	}
	return b.SQLite.Ping(ctx)
}

// Close runs the cleanup function, if any.
func (b *Backend) Close() error {
	if b.Cleanup == nil {
		return nil
	}
	return b.Cleanup()
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Backend, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
