package index

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/bull/ai-tutor-server/internal/llm"
)

// CollectionName is the single Qdrant collection holding all chunks.
const CollectionName = "tutor_chunks"

// Qdrant is the DocumentIndex implementation backed by a Qdrant server.
// A single mutex serializes every index operation; the lock is held only
// for the index call itself, never across an embedding round trip.
type Qdrant struct {
	mu        sync.Mutex
	client    *qdrant.Client
	embedder  llm.Embedder
	dimension int
}

// NewQdrant connects to Qdrant, verifies health with exponential backoff,
// and ensures the chunk collection exists.
func NewQdrant(ctx context.Context, host string, port int, dimension int, embedder llm.Embedder) (*Qdrant, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	q := &Qdrant{
		client:    client,
		embedder:  embedder,
		dimension: dimension,
	}

	if err := q.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("qdrant unreachable: %w", err)
	}
	if err := q.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return q, nil
}

// healthCheckWithRetry probes Qdrant with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (q *Qdrant) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return q.Health(ctx)
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// Health performs a single health check against Qdrant.
func (q *Qdrant) Health(ctx context.Context) error {
	result, err := q.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// ensureCollection creates the chunk collection and its payload index if
// missing. Idempotent.
func (q *Qdrant) ensureCollection(ctx context.Context) error {
	collections, err := q.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range collections {
		if name == CollectionName {
			return nil
		}
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: CollectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// Without this index, document-scoped filtering degrades badly.
	_, err = q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: CollectionName,
		FieldName:      "document_id",
		FieldType:      qdrant.FieldType_FieldTypeInteger.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create document_id index: %w", err)
	}

	return nil
}

// Add appends chunk/embedding pairs. The whole batch goes into one upsert
// under the index lock, so no partial set is observable to a concurrent
// reader.
func (q *Qdrant) Add(ctx context.Context, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(embeddings) {
		return opErr("add", chunks[0].DocumentID,
			fmt.Errorf("chunk/embedding count mismatch: %d vs %d", len(chunks), len(embeddings)))
	}
	for i, embedding := range embeddings {
		if len(embedding) != q.dimension {
			return opErr("add", chunks[0].DocumentID,
				fmt.Errorf("embedding %d has %d dimensions, expected %d", i, len(embedding), q.dimension))
		}
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.New().String()),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"document_id":  chunk.DocumentID,
				"chunk_index":  int64(chunk.ChunkIndex),
				"total_chunks": int64(chunk.TotalChunks),
				"source":       chunk.Source,
				"content":      chunk.Text,
			}),
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.upsertWithRetry(ctx, points); err != nil {
		return opErr("add", chunks[0].DocumentID, err)
	}
	return nil
}

// upsertWithRetry performs the upsert with exponential backoff.
func (q *Qdrant) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: CollectionName,
			Points:         points,
		})
		return err
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// Query embeds the text and returns the k nearest chunks, optionally
// restricted to one owning document. An empty index yields an empty slice.
func (q *Qdrant) Query(ctx context.Context, text string, k int, documentID int64) ([]Chunk, error) {
	embedding, err := q.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var filter *qdrant.Filter
	if documentID != 0 {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchInt("document_id", documentID),
			},
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: CollectionName,
		Query:          qdrant.NewQuery(embedding...),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, opErr("query", documentID, err)
	}

	chunks := make([]Chunk, 0, len(results))
	for _, result := range results {
		payload := result.Payload
		chunks = append(chunks, Chunk{
			Text:        payload["content"].GetStringValue(),
			DocumentID:  payload["document_id"].GetIntegerValue(),
			ChunkIndex:  int(payload["chunk_index"].GetIntegerValue()),
			TotalChunks: int(payload["total_chunks"].GetIntegerValue()),
			Source:      payload["source"].GetStringValue(),
		})
	}
	return chunks, nil
}

// Delete removes every chunk owned by the document. Deleting a document
// with zero chunks succeeds as a no-op.
func (q *Qdrant) Delete(ctx context.Context, documentID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: CollectionName,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchInt("document_id", documentID),
			},
		}),
	})
	if err != nil {
		return opErr("delete", documentID, err)
	}
	return nil
}

// Clear drops every chunk unconditionally by recreating the collection.
func (q *Qdrant) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.client.DeleteCollection(ctx, CollectionName); err != nil {
		return opErr("clear", 0, err)
	}
	if err := q.ensureCollection(ctx); err != nil {
		return opErr("clear", 0, err)
	}
	return nil
}

// Stats returns the total chunk count.
func (q *Qdrant) Stats(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	count, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: CollectionName,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, opErr("stats", 0, err)
	}
	return int(count), nil
}

// Close releases the client connection.
func (q *Qdrant) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}
