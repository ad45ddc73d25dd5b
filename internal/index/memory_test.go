package index

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// mapEmbedder returns a canned vector per input text, so similarity
// ordering is fully controlled by the test.
type mapEmbedder struct {
	vectors map[string][]float32
}

func (e *mapEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, ok := e.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no canned vector for %q", text)
	}
	return v, nil
}

func (e *mapEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func seedMemory(t *testing.T) *Memory {
	t.Helper()
	embedder := &mapEmbedder{vectors: map[string][]float32{
		"cats": {1, 0, 0},
		"dogs": {0, 1, 0},
		"fish": {0, 0, 1},
	}}
	m := NewMemory(embedder)

	chunks := []Chunk{
		{Text: "cats", DocumentID: 1, ChunkIndex: 0, TotalChunks: 2, Source: "pets.txt"},
		{Text: "dogs", DocumentID: 1, ChunkIndex: 1, TotalChunks: 2, Source: "pets.txt"},
		{Text: "fish", DocumentID: 2, ChunkIndex: 0, TotalChunks: 1, Source: "aquarium.txt"},
	}
	embeddings := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	if err := m.Add(context.Background(), chunks, embeddings); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	return m
}

// TestMemory_QueryRanking tests that results come back most-similar first.
func TestMemory_QueryRanking(t *testing.T) {
	m := seedMemory(t)

	results, err := m.Query(context.Background(), "cats", 2, 0)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Text != "cats" {
		t.Errorf("Expected most similar chunk first, got %q", results[0].Text)
	}
}

// TestMemory_QueryDocumentFilter tests that a non-zero document id scopes
// results to that document.
func TestMemory_QueryDocumentFilter(t *testing.T) {
	m := seedMemory(t)

	// Filtered to document 1, even though "fish" is the best global match.
	results, err := m.Query(context.Background(), "fish", 2, 1)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	for _, c := range results {
		if c.DocumentID != 1 {
			t.Errorf("Filter leaked chunk from document %d", c.DocumentID)
		}
	}
}

// TestMemory_QueryKBounds tests that k larger than the index is harmless.
func TestMemory_QueryKBounds(t *testing.T) {
	m := seedMemory(t)

	results, err := m.Query(context.Background(), "cats", 50, 0)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("Expected all 3 chunks, got %d", len(results))
	}
}

// TestMemory_DeleteDocument tests removal of one document's chunks and
// idempotence of repeated deletes.
func TestMemory_DeleteDocument(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()

	if err := m.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	n, err := m.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 chunk after delete, got %d", n)
	}

	// Deleting again changes nothing.
	if err := m.Delete(ctx, 1); err != nil {
		t.Fatalf("Second delete failed: %v", err)
	}
	n, _ = m.Stats(ctx)
	if n != 1 {
		t.Errorf("Second delete mutated the index: %d chunks", n)
	}

	results, err := m.Query(ctx, "cats", 5, 0)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	for _, c := range results {
		if c.DocumentID == 1 {
			t.Errorf("Deleted document still queryable: %q", c.Text)
		}
	}
}

// TestMemory_Clear tests full index reset.
func TestMemory_Clear(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()

	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	n, err := m.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected empty index, got %d chunks", n)
	}
}

// TestMemory_AddCountMismatch tests rejection of unpaired chunks and
// embeddings.
func TestMemory_AddCountMismatch(t *testing.T) {
	m := NewMemory(&mapEmbedder{})

	err := m.Add(context.Background(),
		[]Chunk{{Text: "a", DocumentID: 1}},
		[][]float32{{1}, {2}})
	if err == nil {
		t.Fatal("Expected an error for mismatched counts")
	}

	var idxErr *Error
	if !errors.As(err, &idxErr) {
		t.Fatalf("Expected *Error, got %T", err)
	}
	if idxErr.Op != "add" || idxErr.DocumentID != 1 {
		t.Errorf("Error fields: op=%q document_id=%d", idxErr.Op, idxErr.DocumentID)
	}
}
