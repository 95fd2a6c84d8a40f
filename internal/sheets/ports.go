package sheets

import (
	"context"
	"time"

	"conto/internal/core"
	"conto/internal/settlement"
)

// Ports for outbound adapters.
type (
	// TransactionExporter mirrors transactions into an external spreadsheet,
	// one row per transaction keyed by ID.
	TransactionExporter interface {
		Upsert(ctx context.Context, t core.Transaction) error
		Remove(ctx context.Context, id string) error
	}

	// SettlementWriter publishes the current settlement breakdown.
	SettlementWriter interface {
		WriteSettlement(ctx context.Context, s Summary) error
	}
)

// Summary is what a SettlementWriter renders.
type Summary struct {
	Result      settlement.Result
	Proportions core.ProportionSettings
	Person1Name string
	Person2Name string
	GeneratedAt time.Time
}
