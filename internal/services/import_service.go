package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"conto/internal/amqp"
	"conto/internal/cache"
	"conto/internal/core"
	"conto/internal/dedupe"
	"conto/internal/importer"
	"conto/internal/metrics"
	"conto/internal/rules"
	"conto/internal/store"
)

var (
	ErrPreviewNotFound = errors.New("import preview not found or expired")
	ErrNoFiles         = errors.New("no files to import")
)

// PreviewTTL is how long a preview waits for confirmation.
const PreviewTTL = 15 * time.Minute

// FileProblem is a file that could not be imported, in user-facing form.
type FileProblem struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

// Preview is a parsed, auto-classified and deduplicated import awaiting
// confirmation.
type Preview struct {
	ID             string             `json:"id"`
	New            []core.Transaction `json:"new"`
	Duplicates     []core.Transaction `json:"duplicates"`
	AutoClassified int                `json:"autoClassified"`
	Skipped        int                `json:"skipped"`
	Problems       []FileProblem      `json:"problems,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// Committed is the outcome of confirming a preview.
type Committed struct {
	Imported          []core.Transaction `json:"imported"`
	DuplicatesSkipped int                `json:"duplicatesSkipped"`
}

// ImportService runs uploads through parsing, rules and duplicate detection
// and keeps the result until the user confirms it.
type ImportService struct {
	store     *store.Store
	rules     *rules.Engine
	previews  cache.Cache[Preview]
	publisher SyncPublisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewImportService(st *store.Store, engine *rules.Engine, previews cache.Cache[Preview], publisher SyncPublisher, m *metrics.Metrics) *ImportService {
	return &ImportService{
		store:     st,
		rules:     engine,
		previews:  previews,
		publisher: publisher,
		metrics:   m,
		now:       time.Now,
	}
}

// NewPreviewCache builds the LRU cache previews live in, counting evictions.
func NewPreviewCache(size int, m *metrics.Metrics) *cache.LRUCache[Preview] {
	return cache.NewLRUCache[Preview](size, PreviewTTL,
		cache.WithEvictHook[Preview](func(_ string, reason cache.EvictReason) {
			m.ObservePreview(string(reason))
		}))
}

// Preview parses files sequentially and stages the result. Files that fail
// are listed in Preview.Problems; the others still produce rows.
func (s *ImportService) Preview(ctx context.Context, files []importer.File, opts importer.Options) (Preview, error) {
	if len(files) == 0 {
		return Preview{}, ErrNoFiles
	}

	batch, err := importer.Import(ctx, files, opts)
	if err != nil {
		return Preview{}, fmt.Errorf("import files: %w", err)
	}

	p := Preview{
		ID:        uuid.NewString(),
		Skipped:   batch.Skipped,
		CreatedAt: s.now().UTC(),
	}
	for _, fe := range batch.Errors {
		p.Problems = append(p.Problems, FileProblem{File: fe.File, Message: fe.Err.Error()})
	}

	applied := s.rules.ApplyRulesToTransactions(batch.Transactions)
	txs := make([]core.Transaction, len(applied))
	for i, a := range applied {
		txs[i] = a.Transaction
		if a.WasAutoApplied {
			p.AutoClassified++
		}
	}
	p.Duplicates, p.New = dedupe.Partition(txs, s.store.Snapshot())

	s.previews.Set(p.ID, p)
	s.metrics.ObservePreview("created")
	s.metrics.ObserveImport(len(p.New), len(p.Duplicates), p.Skipped, p.AutoClassified)

	slog.InfoContext(ctx, "Import preview ready",
		"preview_id", p.ID, "new", len(p.New), "duplicates", len(p.Duplicates),
		"auto_classified", p.AutoClassified, "skipped", p.Skipped, "failed_files", len(p.Problems))
	return p, nil
}

// Commit stores a staged preview. Duplicates are only stored when asked
// for. A preview can be committed once.
func (s *ImportService) Commit(ctx context.Context, previewID string, includeDuplicates bool) (Committed, error) {
	p, ok := s.previews.Take(previewID)
	if !ok {
		return Committed{}, fmt.Errorf("%w: %s", ErrPreviewNotFound, previewID)
	}

	txs := p.New
	dups := len(p.Duplicates)
	if includeDuplicates {
		txs = append(append([]core.Transaction{}, p.New...), p.Duplicates...)
		dups = 0
	} else {
		// rows that arrived while the preview was pending
		late, fresh := dedupe.Partition(txs, s.store.Snapshot())
		txs = fresh
		dups += len(late)
	}

	out := Committed{DuplicatesSkipped: dups}
	if len(txs) == 0 {
		s.metrics.ObservePreview("committed")
		return out, nil
	}

	added, err := s.store.Add(ctx, txs...)
	if len(added) == 0 {
		return out, err
	}
	if errors.Is(err, store.ErrPersist) {
		s.metrics.ObservePersistFailure()
	}
	for _, t := range added {
		publishSync(ctx, s.publisher, t.ID, amqp.OpUpsert)
	}
	s.metrics.ObservePreview("committed")

	out.Imported = added
	slog.InfoContext(ctx, "Import committed", "preview_id", previewID, "imported", len(added), "duplicates_skipped", dups)
	return out, err
}

// Discard drops a preview without importing it.
func (s *ImportService) Discard(previewID string) {
	s.previews.Delete(previewID)
}
