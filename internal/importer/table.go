package importer

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"conto/internal/core"
)

// headerScanRows bounds how far into a sheet the header row is searched for.
// Bank exports often start with account details above the table.
const headerScanRows = 30

var (
	dateHeaders = []string{
		"date", "fecha", "datum", "data", "transaction date", "posted date",
		"booking date", "fecha operación", "fecha operacion", "buchungstag",
		"data operazione", "date opération",
	}
	amountHeaders = []string{
		"amount", "importe", "betrag", "importo", "montant", "value",
		"debit", "cargo", "addebiti", "débit",
	}
	creditHeaders = []string{
		"credit", "abono", "accrediti", "crédit", "haben",
	}
	descriptionHeaders = []string{
		"description", "concepto", "beschreibung", "descrizione", "libellé",
		"libelle", "merchant", "payee", "details", "memo", "verwendungszweck",
		"causale", "narrative",
	}
)

type columns struct {
	date, amount, description int
	credit                    int
}

// findHeader locates the header row and the required columns in it. It
// returns the row index, or a MissingColumnsError for the closest candidate.
func findHeader(records [][]string) (int, columns, error) {
	best := -1
	var bestMissing []string

	limit := min(len(records), headerScanRows)
	for i := 0; i < limit; i++ {
		cols, missing := matchColumns(records[i])
		if len(missing) == 0 {
			return i, cols, nil
		}
		if best == -1 || len(missing) < len(bestMissing) {
			best, bestMissing = i, missing
		}
	}
	if best == -1 {
		bestMissing = []string{"date", "amount", "description"}
	}
	return -1, columns{}, &MissingColumnsError{Missing: bestMissing}
}

func matchColumns(header []string) (columns, []string) {
	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = normalizeHeader(h)
	}

	used := make(map[int]bool)
	find := func(aliases []string) int {
		// exact names win over prefixes such as "Value date"
		for _, exact := range []bool{true, false} {
			for _, a := range aliases {
				for i, c := range cells {
					if !used[i] && c != "" && headerMatches(c, a, exact) {
						used[i] = true
						return i
					}
				}
			}
		}
		return -1
	}

	cols := columns{}
	cols.date = find(dateHeaders)
	cols.amount = find(amountHeaders)
	cols.description = find(descriptionHeaders)
	cols.credit = find(creditHeaders)

	var missing []string
	if cols.date < 0 {
		missing = append(missing, "date")
	}
	if cols.amount < 0 {
		missing = append(missing, "amount")
	}
	if cols.description < 0 {
		missing = append(missing, "description")
	}
	return cols, missing
}

func headerMatches(cell, alias string, exact bool) bool {
	if cell == alias {
		return true
	}
	if exact || !strings.HasPrefix(cell, alias) {
		return false
	}
	next, _ := utf8.DecodeRuneInString(cell[len(alias):])
	return !unicode.IsLetter(next)
}

func normalizeHeader(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// rowsFromTable maps the records below the header into rows. Rows whose date,
// amount or description cannot be read, or whose amount is zero, are counted
// as skipped.
func rowsFromTable(records [][]string) (Result, error) {
	start, cols, err := findHeader(records)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, rec := range records[start+1:] {
		if blank(rec) {
			continue
		}
		row, ok := tableRow(rec, cols)
		if !ok {
			res.Skipped++
			continue
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

func tableRow(rec []string, cols columns) (Row, bool) {
	date, err := ParseDate(cell(rec, cols.date))
	if err != nil {
		return Row{}, false
	}
	desc := strings.Join(strings.Fields(cell(rec, cols.description)), " ")
	if desc == "" {
		return Row{}, false
	}

	raw := cell(rec, cols.amount)
	if strings.TrimSpace(raw) == "" && cols.credit >= 0 {
		raw = cell(rec, cols.credit)
	}
	amount, err := core.ParseAmount(raw)
	if err != nil {
		return Row{}, false
	}
	amount = math.Abs(amount)
	if amount == 0 {
		return Row{}, false
	}
	return Row{Date: date, Description: desc, Amount: amount}, true
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
