package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/genai"
)

// Config holds Gemini client settings.
type Config struct {
	APIKey         string
	Model          string // chat model, e.g. "gemini-2.5-flash"
	EmbedModel     string // e.g. "gemini-embedding-001"
	EmbedDimension int
	Timeout        time.Duration // per-call deadline
	MaxRetries     int           // bounded retry for transient failures
	Temperature    float32
	QuotaResetZone string // IANA zone of the provider's billing day
}

// Client talks to the Gemini API for embeddings and chat completions.
// Quota-exhaustion errors are classified into QuotaError with a retry hint
// pointing at the daily reset instant; other provider failures are returned
// as-is for the caller to treat as generic upstream errors.
type Client struct {
	client      *genai.Client
	model       string
	embedModel  string
	embedDim    int
	timeout     time.Duration
	maxRetries  int
	temperature float32
	resetZone   *time.Location
	logger      *slog.Logger
}

// NewClient creates a Gemini client. The quota reset zone must be a valid
// IANA name; it defaults to the provider's billing zone when empty.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "gemini-embedding-001"
	}
	if cfg.EmbedDimension <= 0 {
		cfg.EmbedDimension = 768
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.QuotaResetZone == "" {
		cfg.QuotaResetZone = "America/Los_Angeles"
	}

	loc, err := time.LoadLocation(cfg.QuotaResetZone)
	if err != nil {
		return nil, fmt.Errorf("invalid quota reset zone %q: %w", cfg.QuotaResetZone, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	return &Client{
		client:      client,
		model:       cfg.Model,
		embedModel:  cfg.EmbedModel,
		embedDim:    cfg.EmbedDimension,
		timeout:     cfg.Timeout,
		maxRetries:  cfg.MaxRetries,
		temperature: cfg.Temperature,
		resetZone:   loc,
		logger:      logger,
	}, nil
}

// Embed generates the embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// maxEmbedBatch is the provider's per-request limit on content items
// for the batch embedding endpoint.
const maxEmbedBatch = 100

// EmbedBatch generates embedding vectors for all texts. The provider
// caps a single request at maxEmbedBatch items, so longer lists are
// sliced into batches and the vectors concatenated in order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts to embed")
	}

	vectors := make([][]float32, 0, len(texts))
	for _, batch := range splitBatches(texts, maxEmbedBatch) {
		embedded, err := c.embedSlice(ctx, batch)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, embedded...)
	}
	return vectors, nil
}

// splitBatches slices texts into consecutive groups of at most size items.
func splitBatches(texts []string, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		batches = append(batches, texts[start:end])
	}
	return batches
}

// embedSlice makes one embedding request for at most maxEmbedBatch texts.
func (c *Client) embedSlice(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	outputDim := int32(c.embedDim)
	var result *genai.EmbedContentResponse
	operation := func() error {
		var err error
		result, err = c.client.Models.EmbedContent(ctx, c.embedModel, contents, &genai.EmbedContentConfig{
			OutputDimensionality: &outputDim,
		})
		if err != nil {
			if isQuotaSignal(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	if err := c.retry(ctx, operation); err != nil {
		return nil, c.classify(fmt.Errorf("embedding failed: %w", err))
	}

	if result == nil || len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding response mismatch: expected %d vectors", len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range result.Embeddings {
		if len(emb.Values) != c.embedDim {
			return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", c.embedDim, len(emb.Values))
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// Generate runs a single chat completion. History turns become alternating
// user/model messages preceding the final user input; system becomes the
// system instruction. An empty model falls back to the configured default.
func (c *Client) Generate(ctx context.Context, model, system string, history []Turn, input string) (string, error) {
	if model == "" {
		model = c.model
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var contents []*genai.Content
	for _, turn := range history {
		contents = append(contents,
			genai.NewContentFromText(turn.Question, genai.RoleUser),
			genai.NewContentFromText(turn.Answer, genai.RoleModel),
		)
	}
	contents = append(contents, genai.NewContentFromText(input, genai.RoleUser))

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	var text string
	operation := func() error {
		resp, err := c.client.Models.GenerateContent(ctx, model, contents, cfg)
		if err != nil {
			if isQuotaSignal(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		text = responseText(resp)
		if text == "" {
			return backoff.Permanent(fmt.Errorf("no response generated from chat model"))
		}
		return nil
	}

	if err := c.retry(ctx, operation); err != nil {
		return "", c.classify(fmt.Errorf("generation failed: %w", err))
	}

	c.logger.Debug("generation complete", "model", model, "response_length", len(text))
	return text, nil
}

// retry runs op with bounded exponential backoff. Quota errors are marked
// permanent inside op and never retried here; the quota is a calendar-day
// budget, not a transient rate limit.
func (c *Client) retry(ctx context.Context, op backoff.Operation) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries)), ctx))
}

// classify wraps quota-exhaustion failures in a QuotaError carrying the
// time until the daily reset instant. Everything else passes through.
func (c *Client) classify(err error) error {
	if !isQuotaSignal(err) {
		return err
	}
	qe := &QuotaError{
		RetryAfter: untilReset(time.Now(), c.resetZone),
		Err:        err,
	}
	c.logger.Error("provider quota exhausted", "retry_after", qe.RetryAfter.Round(time.Second))
	return qe
}

// responseText flattens the first candidate with non-empty text parts.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b []byte
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				b = append(b, part.Text...)
			}
		}
		if len(b) > 0 {
			break
		}
	}
	return string(b)
}
