package importer

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"conto/internal/core"
)

// parsePDF extracts text rows and keeps those shaped like
// "<date> <description> <amount>".
func parsePDF(r io.Reader) (res Result, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("read pdf: %w", err)
	}

	// the pdf reader panics on some malformed inputs
	defer func() {
		if p := recover(); p != nil {
			res, err = Result{}, fmt.Errorf("read pdf: %v", p)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("open pdf: %w", err)
	}

	var lines []string
	for i := 1; i <= doc.NumPage(); i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return Result{}, fmt.Errorf("read pdf page %d: %w", i, err)
		}
		for _, row := range rows {
			parts := make([]string, 0, len(row.Content))
			for _, t := range row.Content {
				parts = append(parts, t.S)
			}
			lines = append(lines, strings.Join(parts, " "))
		}
	}
	return rowsFromLines(lines)
}

// rowsFromLines matches free-text statement lines. Lines that do not start
// with a date are ignored; lines that start with one but do not end with an
// amount are skipped.
func rowsFromLines(lines []string) (Result, error) {
	var res Result
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}

		date, used := leadingDate(fields)
		if used == 0 {
			continue
		}
		rest := fields[used:]

		amount, n, ok := trailingAmount(rest)
		desc := strings.Join(rest[:len(rest)-n], " ")
		if !ok || desc == "" || amount == 0 {
			res.Skipped++
			continue
		}
		res.Rows = append(res.Rows, Row{Date: date, Description: desc, Amount: amount})
	}
	if len(res.Rows) == 0 && res.Skipped == 0 {
		return res, &MissingColumnsError{Missing: []string{"date", "amount", "description"}}
	}
	return res, nil
}

// leadingDate tries one, then three fields ("2 Jan 2024"), then two
// ("Jan 2, 2024").
func leadingDate(fields []string) (string, int) {
	for _, n := range []int{1, 3, 2} {
		if len(fields) <= n {
			continue
		}
		candidate := strings.Join(fields[:n], " ")
		if n == 1 && isPlainNumber(candidate) {
			continue
		}
		if d, err := ParseDate(candidate); err == nil {
			return d, n
		}
	}
	return "", 0
}

// trailingAmount reads the amount from the last field, or from the last two
// when a currency marker is split off ("12,50 €").
func trailingAmount(fields []string) (float64, int, bool) {
	for _, n := range []int{1, 2} {
		if len(fields) <= n {
			break
		}
		num := fields[len(fields)-n]
		if !strings.ContainsAny(num, "0123456789") || strings.IndexFunc(num, unicode.IsLetter) >= 0 {
			continue
		}
		candidate := strings.Join(fields[len(fields)-n:], "")
		v, err := core.ParseAmount(candidate)
		if err == nil {
			return math.Abs(v), n, true
		}
	}
	return 0, 0, false
}

// Bare numbers at the start of a line are reference numbers, not Excel serials.
func isPlainNumber(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != ',' {
			return false
		}
	}
	return true
}
