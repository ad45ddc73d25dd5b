// Package llm wraps the Gemini API for embedding and chat generation.
package llm

import "context"

// Turn is one completed question/answer exchange used as generation history.
type Turn struct {
	Question string
	Answer   string
}

// Embedder converts text into a vector for similarity retrieval.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a completion for a prompt with conversation history.
// An empty model selects the provider default.
type Generator interface {
	Generate(ctx context.Context, model, system string, history []Turn, input string) (string, error)
}
