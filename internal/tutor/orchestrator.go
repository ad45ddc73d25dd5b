// Package tutor orchestrates one conversational turn: history-aware
// retrieval followed by a single combined answer+emotion generation.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/bull/ai-tutor-server/internal/index"
	"github.com/bull/ai-tutor-server/internal/llm"
	"github.com/bull/ai-tutor-server/internal/store"
)

var (
	// ErrEmptyQuestion is returned for blank or whitespace-only questions.
	ErrEmptyQuestion = errors.New("question cannot be empty")
	// ErrQueryTooLong is returned when the question exceeds the limit.
	ErrQueryTooLong = errors.New("question exceeds maximum length")
	// ErrBadSessionID is returned for session ids with characters outside
	// alphanumerics and hyphens.
	ErrBadSessionID = errors.New("session id may only contain alphanumerics and hyphens")
)

// AskRequest is one user turn. SessionID may be empty, in which case a new
// session is created. DocumentID, when non-zero, scopes retrieval to one
// document.
type AskRequest struct {
	SessionID  string `json:"session_id"`
	Question   string `json:"question"`
	Model      string `json:"model"`
	DocumentID int64  `json:"document_id,omitempty"`
}

// Response is the answered turn.
type Response struct {
	Answer    string `json:"answer"`
	SessionID string `json:"session_id"`
	Model     string `json:"model"`
	Emotion   string `json:"emotion"`
}

// Options configures the orchestrator.
type Options struct {
	HistoryWindow  int    // turns of history loaded per request
	RetrieverK     int    // chunks retrieved per query
	MaxQueryLength int    // longest accepted question
	DefaultModel   string // model used when the request names none
}

// Orchestrator runs chat turns against the index, the generation provider
// and the chat log.
type Orchestrator struct {
	store  *store.Store
	index  index.DocumentIndex
	gen    llm.Generator
	opts   Options
	logger *slog.Logger
}

// NewOrchestrator wires a chat orchestrator.
func NewOrchestrator(st *store.Store, idx index.DocumentIndex, gen llm.Generator, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 10
	}
	if opts.RetrieverK <= 0 {
		opts.RetrieverK = 2
	}
	if opts.MaxQueryLength <= 0 {
		opts.MaxQueryLength = 2000
	}
	return &Orchestrator{
		store:  st,
		index:  idx,
		gen:    gen,
		opts:   opts,
		logger: logger,
	}
}

// Ask answers one user turn. The flow is: validate, load the history
// window, reformulate the question against that history (skipped entirely
// when the session has none), retrieve the top-k chunks, and make exactly
// one generation call that yields both the answer and the emotion. The
// turn is then persisted best-effort: a logging failure after a successful
// answer never fails the turn.
func (o *Orchestrator) Ask(ctx context.Context, req AskRequest) (*Response, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if n := utf8.RuneCountInString(question); n > o.opts.MaxQueryLength {
		return nil, fmt.Errorf("%w: %d > %d characters", ErrQueryTooLong, n, o.opts.MaxQueryLength)
	}

	sessionID, err := normalizeSessionID(req.SessionID)
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = o.opts.DefaultModel
	}

	history := o.loadHistory(ctx, sessionID)

	query := question
	if len(history) > 0 {
		reformulated, err := o.gen.Generate(ctx, model, reformulatePrompt, history, question)
		if err != nil {
			return nil, fmt.Errorf("reformulate question: %w", err)
		}
		if r := strings.TrimSpace(reformulated); r != "" {
			query = r
		}
		o.logger.Debug("question reformulated", "session_id", sessionID)
	}

	chunks, err := o.index.Query(ctx, query, o.opts.RetrieverK, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	raw, err := o.gen.Generate(ctx, model, buildTutorPrompt(chunks), history, question)
	if err != nil {
		return nil, err
	}

	parsed := ParseModelOutput(raw, o.logger)

	// History is best-effort, not transactional with generation: the user
	// still gets their answer if the log write fails.
	if err := o.store.AppendTurn(ctx, sessionID, question, parsed.Answer, model, parsed.Emotion); err != nil {
		o.logger.Error("failed to persist chat turn", "session_id", sessionID, "error", err)
	}

	o.logger.Info("turn answered",
		"session_id", sessionID, "model", model,
		"chunks", len(chunks), "emotion", parsed.Emotion)

	return &Response{
		Answer:    parsed.Answer,
		SessionID: sessionID,
		Model:     model,
		Emotion:   parsed.Emotion,
	}, nil
}

// loadHistory fetches the recent turns for prompting. A load failure is
// logged and treated as an empty history rather than failing the turn.
func (o *Orchestrator) loadHistory(ctx context.Context, sessionID string) []llm.Turn {
	records, err := o.store.RecentTurns(ctx, sessionID, o.opts.HistoryWindow)
	if err != nil {
		o.logger.Warn("failed to load chat history", "session_id", sessionID, "error", err)
		return nil
	}

	turns := make([]llm.Turn, len(records))
	for i, r := range records {
		turns[i] = llm.Turn{Question: r.Question, Answer: r.Answer}
	}
	return turns
}

// normalizeSessionID validates a caller-supplied session id or mints a new
// one when absent.
func normalizeSessionID(sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return uuid.New().String(), nil
	}
	for _, c := range sessionID {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
		default:
			return "", ErrBadSessionID
		}
	}
	return sessionID, nil
}
