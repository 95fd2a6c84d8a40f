// Package dedupe finds imported transactions that already exist.
package dedupe

import (
	"strings"

	"conto/internal/core"
)

// IsDuplicate reports whether a and b describe the same bank movement: same
// date, same amount and the same description ignoring case and surrounding
// whitespace.
func IsDuplicate(a, b core.Transaction) bool {
	return a.Date == b.Date &&
		a.Amount == b.Amount &&
		normalize(a.Description) == normalize(b.Description)
}

// Partition splits batch into transactions that match something in existing
// and those that do not. Batch order is kept in both results. Matching rows
// inside the same batch are not collapsed.
func Partition(batch, existing []core.Transaction) (duplicates, uniques []core.Transaction) {
	for _, t := range batch {
		if containsMatch(existing, t) {
			duplicates = append(duplicates, t)
		} else {
			uniques = append(uniques, t)
		}
	}
	return duplicates, uniques
}

func containsMatch(list []core.Transaction, t core.Transaction) bool {
	for _, e := range list {
		if IsDuplicate(e, t) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
