package index

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bull/ai-tutor-server/internal/llm"
)

// Memory is a brute-force cosine-similarity DocumentIndex. It backs unit
// tests and a no-Qdrant development mode; the contract is identical to the
// Qdrant implementation.
type Memory struct {
	mu       sync.Mutex
	embedder llm.Embedder
	chunks   []Chunk
	vectors  [][]float32
}

// NewMemory creates an empty in-memory index.
func NewMemory(embedder llm.Embedder) *Memory {
	return &Memory{embedder: embedder}
}

// Add appends chunk/embedding pairs atomically with respect to other
// index operations.
func (m *Memory) Add(ctx context.Context, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		docID := int64(0)
		if len(chunks) > 0 {
			docID = chunks[0].DocumentID
		}
		return opErr("add", docID,
			fmt.Errorf("chunk/embedding count mismatch: %d vs %d", len(chunks), len(embeddings)))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = append(m.chunks, chunks...)
	m.vectors = append(m.vectors, embeddings...)
	return nil
}

// Query embeds the text and scans the whole index for the k nearest chunks.
func (m *Memory) Query(ctx context.Context, text string, k int, documentID int64) ([]Chunk, error) {
	embedding, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	type scored struct {
		chunk Chunk
		score float32
	}
	var candidates []scored
	for i, chunk := range m.chunks {
		if documentID != 0 && chunk.DocumentID != documentID {
			continue
		}
		candidates = append(candidates, scored{chunk: chunk, score: dot(m.vectors[i], embedding)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if k > len(candidates) {
		k = len(candidates)
	}

	results := make([]Chunk, 0, k)
	for i := 0; i < k; i++ {
		results = append(results, candidates[i].chunk)
	}
	return results, nil
}

// Delete removes every chunk owned by the document; a no-op when none exist.
func (m *Memory) Delete(ctx context.Context, documentID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.chunks[:0]
	keptVectors := m.vectors[:0]
	for i, chunk := range m.chunks {
		if chunk.DocumentID != documentID {
			kept = append(kept, chunk)
			keptVectors = append(keptVectors, m.vectors[i])
		}
	}
	m.chunks = kept
	m.vectors = keptVectors
	return nil
}

// Clear removes all chunks unconditionally.
func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = nil
	m.vectors = nil
	return nil
}

// Stats returns the total chunk count.
func (m *Memory) Stats(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chunks), nil
}

// dot computes the inner product; vectors are assumed L2-normalized so
// this is cosine similarity.
func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
