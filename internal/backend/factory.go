package backend

import (
	"context"
	"fmt"
	"log/slog"

	"conto/internal/rules"
	"conto/internal/services"
	"conto/internal/storage"
	"conto/internal/store"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*Backend, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	if err := repo.Ping(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &Backend{
		Transactions: repo,
		Rules:        repo,
		Settings:     repo,
		SQLite:       repo,
		Cleanup:      repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() *Backend {
	f.logger.Warn("Using memory backend; data is lost on restart")

	return &Backend{
		Transactions: store.NewMemoryRepository(),
		Rules:        rules.NewMemoryStore(),
		Settings:     services.NewMemorySettings(),
	}
}
