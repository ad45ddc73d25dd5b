// Package ingest composes extraction, chunking, deduplication and indexing
// into the document ingestion pipeline.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bull/ai-tutor-server/internal/chunker"
	"github.com/bull/ai-tutor-server/internal/extract"
	"github.com/bull/ai-tutor-server/internal/index"
	"github.com/bull/ai-tutor-server/internal/llm"
	"github.com/bull/ai-tutor-server/internal/store"
)

// Request describes one file to ingest. Path points at the uploaded bytes
// on disk; Filename is the sanitized caller-facing name.
type Request struct {
	Path      string
	Filename  string
	SizeBytes int64
	FileType  string
}

// Result reports a completed ingestion.
type Result struct {
	DocumentID int64
	Chunks     int
}

// Pipeline runs ingestion requests. Two documents may be extracted, chunked
// and embedded concurrently; only the index-touching step is serialized, by
// the index itself.
type Pipeline struct {
	store    *store.Store
	index    index.DocumentIndex
	embedder llm.Embedder
	splitter *chunker.Splitter
	logger   *slog.Logger
}

// NewPipeline wires the ingestion pipeline.
func NewPipeline(st *store.Store, idx index.DocumentIndex, embedder llm.Embedder, splitter *chunker.Splitter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:    st,
		index:    idx,
		embedder: embedder,
		splitter: splitter,
		logger:   logger,
	}
}

// Ingest processes one file: extract, chunk, hash, record metadata, embed,
// index. The metadata record is inserted first to obtain the document id
// chunks are tagged with; if any later step fails, the record is rolled
// back so no document without a complete chunk set stays visible.
//
// Errors: extract.ErrUnsupportedType, extract.ErrEmptyContent,
// store.ErrDuplicateHash, *index.Error.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Result, error) {
	blocks, err := extract.Extract(req.Path)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = b.Text
	}
	chunks, err := p.splitter.Split(texts)
	if err != nil {
		// Zero chunks is an ingestion failure, not a silent no-op.
		return nil, fmt.Errorf("%w: splitting %s produced no chunks", extract.ErrEmptyContent, req.Filename)
	}

	hash, err := extract.FileHash(req.Path)
	if err != nil {
		return nil, fmt.Errorf("hash %s: %w", req.Filename, err)
	}

	// Nothing has been mutated up to here, so the failures above need no
	// rollback. The store enforces hash uniqueness.
	docID, err := p.store.InsertDocument(ctx, req.Filename, req.SizeBytes, req.FileType, hash)
	if err != nil {
		return nil, err
	}

	p.logger.Info("ingesting document",
		"document_id", docID, "filename", req.Filename, "chunks", len(chunks))

	embeddings, err := p.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		p.rollback(ctx, docID)
		return nil, fmt.Errorf("embed chunks for document %d: %w", docID, err)
	}

	indexChunks := make([]index.Chunk, len(chunks))
	for i, text := range chunks {
		indexChunks[i] = index.Chunk{
			Text:        text,
			DocumentID:  docID,
			ChunkIndex:  i,
			TotalChunks: len(chunks),
			Source:      req.Filename,
		}
	}

	if err := p.index.Add(ctx, indexChunks, embeddings); err != nil {
		p.rollback(ctx, docID)
		return nil, err
	}

	p.logger.Info("document indexed", "document_id", docID, "chunks", len(chunks))
	return &Result{DocumentID: docID, Chunks: len(chunks)}, nil
}

// rollback removes a just-inserted metadata record after a failed indexing
// step, keeping the visible document set equal to the set of documents with
// complete chunk sets.
func (p *Pipeline) rollback(ctx context.Context, docID int64) {
	if _, err := p.store.DeleteDocument(ctx, docID); err != nil {
		p.logger.Error("rollback of document record failed", "document_id", docID, "error", err)
	}
}

// Delete removes a document's chunks from the index and then its metadata
// record. Idempotent: deleting an unknown id succeeds.
func (p *Pipeline) Delete(ctx context.Context, docID int64) error {
	if err := p.index.Delete(ctx, docID); err != nil {
		return err
	}

	deleted, err := p.store.DeleteDocument(ctx, docID)
	if err != nil {
		return err
	}
	if !deleted {
		p.logger.Warn("delete for unknown document id", "document_id", docID)
	}
	return nil
}
