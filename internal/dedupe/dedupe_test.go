package dedupe

import (
	"testing"

	"conto/internal/core"
)

func mk(date, desc string, amount float64) core.Transaction {
	return core.Transaction{Date: date, Description: desc, Amount: amount}
}

func TestPartition(t *testing.T) {
	existing := []core.Transaction{
		mk("2024-03-01", "AMAZON", 50),
		mk("2024-03-02", "Cafe Central", 4.5),
	}

	tests := []struct {
		name     string
		batch    []core.Transaction
		wantDups int
		wantNew  int
	}{
		{"case insensitive", []core.Transaction{mk("2024-03-01", "  amazon ", 50)}, 1, 0},
		{"different date", []core.Transaction{mk("2024-03-03", "AMAZON", 50)}, 0, 1},
		{"different amount", []core.Transaction{mk("2024-03-01", "AMAZON", 50.01)}, 0, 1},
		{"empty batch", nil, 0, 0},
		{
			name: "repeated in batch",
			batch: []core.Transaction{
				mk("2024-04-01", "Bakery", 3),
				mk("2024-04-01", "Bakery", 3),
				mk("2024-03-02", "cafe central", 4.5),
			},
			wantDups: 1,
			wantNew:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dups, uniq := Partition(tt.batch, existing)
			if len(dups) != tt.wantDups || len(uniq) != tt.wantNew {
				t.Fatalf("got %d duplicates / %d new, want %d / %d", len(dups), len(uniq), tt.wantDups, tt.wantNew)
			}
		})
	}
}

func TestPartitionKeepsOrder(t *testing.T) {
	batch := []core.Transaction{
		mk("2024-05-01", "a", 1),
		mk("2024-05-02", "b", 2),
		mk("2024-05-03", "c", 3),
	}
	_, uniq := Partition(batch, nil)
	for i, want := range []string{"a", "b", "c"} {
		if uniq[i].Description != want {
			t.Fatalf("position %d: got %q, want %q", i, uniq[i].Description, want)
		}
	}
}
