// Package importer reads bank statement exports (CSV, Excel, PDF) into
// unclassified transactions.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"conto/internal/core"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrMissingColumns    = errors.New("required columns not found")
	ErrNoRows            = errors.New("no transactions found")
)

// MissingColumnsError lists which required columns could not be located.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("could not find %s column(s); expected headers such as Date, Amount and Description",
		strings.Join(e.Missing, ", "))
}

func (e *MissingColumnsError) Is(target error) bool {
	return target == ErrMissingColumns
}

// Row is one parsed statement line, already normalized.
type Row struct {
	Date        string
	Description string
	Amount      float64
}

// Result is the outcome of parsing a single file.
type Result struct {
	Rows    []Row
	Skipped int
}

// File is one upload to import.
type File struct {
	Name   string
	Reader io.Reader
	// Card overrides Options.Card for this file when set.
	Card string
}

// Options are stamped onto every imported transaction.
type Options struct {
	PaidBy core.Party
	Card   string
}

// FileError records a file that could not be imported.
type FileError struct {
	File string `json:"file"`
	Err  error  `json:"-"`
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e FileError) Unwrap() error {
	return e.Err
}

// Batch is the combined outcome of an Import call.
type Batch struct {
	Transactions []core.Transaction
	Skipped      int
	Errors       []FileError
}

// Parse reads a statement file, choosing the reader by file extension.
func Parse(name string, r io.Reader) (Result, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return parseCSV(r)
	case ".xlsx", ".xlsm":
		return parseXLSX(r)
	case ".pdf":
		return parsePDF(r)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// Import parses files one after another. A file that fails is reported in
// Batch.Errors and does not stop the others. Every transaction comes back
// unclassified with PaidBy, Card and Source stamped.
func Import(ctx context.Context, files []File, opts Options) (Batch, error) {
	if !opts.PaidBy.Valid() {
		return Batch{}, fmt.Errorf("%w: %q", core.ErrInvalidParty, opts.PaidBy)
	}

	var b Batch
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return b, err
		}

		res, err := Parse(f.Name, f.Reader)
		if err == nil && len(res.Rows) == 0 {
			err = ErrNoRows
		}
		if err != nil {
			slog.WarnContext(ctx, "Failed to import file", "file", f.Name, "error", err)
			b.Errors = append(b.Errors, FileError{File: f.Name, Err: err})
			continue
		}

		card := opts.Card
		if f.Card != "" {
			card = f.Card
		}
		for _, row := range res.Rows {
			t := core.Transaction{
				Date:        row.Date,
				Description: row.Description,
				Amount:      row.Amount,
				PaidBy:      opts.PaidBy,
				Card:        strings.TrimSpace(card),
				Source:      filepath.Base(f.Name),
			}
			t.Classify(core.CategoryUnclassified, false)
			b.Transactions = append(b.Transactions, t)
		}
		b.Skipped += res.Skipped

		slog.InfoContext(ctx, "Parsed statement file",
			"file", f.Name, "rows", len(res.Rows), "skipped", res.Skipped)
	}
	return b, nil
}
