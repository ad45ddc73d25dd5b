// Package index owns chunk storage and similarity retrieval. It is the only
// component that touches the vector index; all operations on an
// implementation are serialized behind one process-wide lock because the
// underlying index offers no transaction isolation of its own.
package index

import (
	"context"
	"fmt"
)

// Chunk is one indexed span of document text. Chunks are immutable once
// indexed; ChunkIndex runs 0..TotalChunks-1 within the owning document.
type Chunk struct {
	Text        string
	DocumentID  int64
	ChunkIndex  int
	TotalChunks int
	Source      string
}

// DocumentIndex is the contract for chunk storage. Query embeds the text
// itself and returns an empty slice, never an error, on an empty index.
// Delete is idempotent. Clear is destructive and meant for administrative
// use only.
type DocumentIndex interface {
	Add(ctx context.Context, chunks []Chunk, embeddings [][]float32) error
	Query(ctx context.Context, text string, k int, documentID int64) ([]Chunk, error)
	Delete(ctx context.Context, documentID int64) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (int, error)
}

// Error reports a failed index operation. DocumentID is zero when the
// operation was not scoped to one document.
type Error struct {
	Op         string
	DocumentID int64
	Err        error
}

func (e *Error) Error() string {
	if e.DocumentID != 0 {
		return fmt.Sprintf("index %s (document %d): %v", e.Op, e.DocumentID, e.Err)
	}
	return fmt.Sprintf("index %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func opErr(op string, documentID int64, err error) error {
	return &Error{Op: op, DocumentID: documentID, Err: err}
}
