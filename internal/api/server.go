// Package api exposes the ingestion and chat flows over HTTP. The
// transport stays thin: JSON in and out, status-code mapping, counters.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bull/ai-tutor-server/internal/config"
	"github.com/bull/ai-tutor-server/internal/index"
	"github.com/bull/ai-tutor-server/internal/ingest"
	"github.com/bull/ai-tutor-server/internal/store"
	"github.com/bull/ai-tutor-server/internal/tutor"
)

// Server holds the wired core components behind the HTTP handlers.
type Server struct {
	store        *store.Store
	index        index.DocumentIndex
	pipeline     *ingest.Pipeline
	orchestrator *tutor.Orchestrator
	settings     *config.Settings
	metrics      *Metrics
	logger       *slog.Logger
}

// Config holds server dependencies.
type Config struct {
	Store        *store.Store
	Index        index.DocumentIndex
	Pipeline     *ingest.Pipeline
	Orchestrator *tutor.Orchestrator
	Settings     *config.Settings
	Logger       *slog.Logger
}

// NewServer creates the HTTP server facade.
func NewServer(cfg *Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:        cfg.Store,
		index:        cfg.Index,
		pipeline:     cfg.Pipeline,
		orchestrator: cfg.Orchestrator,
		settings:     cfg.Settings,
		metrics:      NewMetrics(),
		logger:       logger,
	}
}

// Routes returns the route table.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /upload-doc", s.handleUpload)
	mux.HandleFunc("GET /list-docs", s.handleListDocs)
	mux.HandleFunc("POST /delete-doc", s.handleDeleteDoc)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /api-stats", s.handleAPIStats)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
