//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"conto/internal/core"
	"conto/internal/settlement"
	"conto/internal/sheets"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_MirrorAndSettlement(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := New(ctx, Config{
		SpreadsheetID:     spreadsheetID,
		TransactionsSheet: os.Getenv("GOOGLE_SHEET_NAME"),
		CredentialsJSON:   os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		CredentialsFile:   os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	tx := core.Transaction{
		ID:          uuid.NewString(),
		Date:        time.Now().Format(core.DateLayout),
		Description: "integration test",
		Amount:      1.23,
		PaidBy:      core.PartyPerson1,
		UpdatedAt:   time.Now(),
	}
	tx.Classify(core.CategoryShared, false)

	if err := client.Upsert(ctx, tx); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	tx.Classify(core.CategoryPerson1, false)
	if err := client.Upsert(ctx, tx); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if err := client.Remove(ctx, tx.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	res := settlement.Calculate([]core.Transaction{tx}, core.DefaultProportions())
	if err := client.WriteSettlement(ctx, sheets.Summary{Result: res, Proportions: core.DefaultProportions(), GeneratedAt: time.Now()}); err != nil {
		t.Fatalf("write settlement: %v", err)
	}
}
