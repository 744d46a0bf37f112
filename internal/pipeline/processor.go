package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"docuchat/features/document"
	"docuchat/internal/extract"
	"docuchat/internal/text"
)

type Extractor interface {
	Extract(ctx context.Context, filePath string) (*extract.Result, error)
}

type Indexer interface {
	Index(ctx context.Context, documentID string, chunks []text.Chunk) error
}

// Processor runs the ingestion stages for one uploaded document:
// extract text, chunk it, embed and index the chunks, then flip the
// document to READY or FAILED.
type Processor struct {
	repo      document.Repository
	extractor Extractor
	chunker   *text.Chunker
	indexer   Indexer
}

func NewProcessor(repo document.Repository, extractor Extractor, chunker *text.Chunker, indexer Indexer) *Processor {
	return &Processor{
		repo:      repo,
		extractor: extractor,
		chunker:   chunker,
		indexer:   indexer,
	}
}

// Process loads the document, runs the stages, and persists the outcome.
// Stage failures are recorded on the document rather than returned: the
// document ends up FAILED with an error message and the task is done. Only
// infrastructure errors around loading or persisting the row propagate, so
// the queue retries exactly the cases where retrying can help.
func (p *Processor) Process(ctx context.Context, documentID string) error {
	doc, err := p.repo.Get(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}

	if stageErr := p.run(ctx, doc); stageErr != nil {
		slog.ErrorContext(ctx, "document processing failed", "error", stageErr, "document_id", doc.ID)
		doc.Status = document.StatusFailed
		doc.ErrorMessage = "Processing failed: " + stageErr.Error()
	} else {
		doc.Status = document.StatusReady
		doc.ErrorMessage = ""
		slog.InfoContext(ctx, "document processed",
			"document_id", doc.ID, "pages", doc.PageCount, "chunks", doc.ChunkCount)
	}

	if err := p.repo.Save(ctx, doc); err != nil {
		return fmt.Errorf("persist document %s: %w", doc.ID, err)
	}
	return nil
}

func (p *Processor) run(ctx context.Context, doc *document.Document) error {
	result, err := p.extractor.Extract(ctx, doc.FilePath)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	doc.PageCount = result.PageCount

	pages := make([]text.Page, 0, len(result.Pages))
	for _, page := range result.Pages {
		pages = append(pages, text.Page{Number: page.PageNumber, Text: page.Text})
	}

	// A document with no text layer (e.g. scanned images) yields zero
	// chunks; it still becomes READY, and chat answers with the fixed
	// no-context fallback.
	chunks := p.chunker.ChunkPages(pages)
	doc.ChunkCount = len(chunks)

	if err := p.indexer.Index(ctx, doc.ID, chunks); err != nil {
		return fmt.Errorf("index chunks: %w", err)
	}
	return nil
}
