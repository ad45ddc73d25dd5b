// Package main provides the AI tutor backend server entry point.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bull/ai-tutor-server/internal/api"
	"github.com/bull/ai-tutor-server/internal/chunker"
	"github.com/bull/ai-tutor-server/internal/config"
	"github.com/bull/ai-tutor-server/internal/index"
	"github.com/bull/ai-tutor-server/internal/ingest"
	"github.com/bull/ai-tutor-server/internal/llm"
	"github.com/bull/ai-tutor-server/internal/store"
	"github.com/bull/ai-tutor-server/internal/tutor"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	settings, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if err := os.MkdirAll(settings.UploadDir, 0o755); err != nil {
		log.Fatalf("failed to create upload directory: %v", err)
	}

	// Durable store for document metadata and chat history
	st, err := store.Open(settings.DatabasePath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer st.Close()

	// Gemini client for embeddings and generation
	client, err := llm.NewClient(ctx, llm.Config{
		APIKey:         settings.GoogleAPIKey,
		Model:          settings.DefaultModel,
		EmbedModel:     settings.EmbedModel,
		EmbedDimension: settings.EmbedDimension,
		Timeout:        settings.ModelTimeout,
		MaxRetries:     settings.MaxRetries,
		Temperature:    settings.Temperature,
		QuotaResetZone: settings.QuotaResetZone,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create Gemini client: %v", err)
	}

	// Vector index backend
	var idx index.DocumentIndex
	switch settings.IndexBackend {
	case "memory":
		idx = index.NewMemory(client)
	default:
		qdrantIdx, err := index.NewQdrant(ctx, settings.QdrantHost, settings.QdrantPort, settings.EmbedDimension, client)
		if err != nil {
			log.Fatalf("failed to connect to Qdrant: %v", err)
		}
		defer qdrantIdx.Close()
		idx = qdrantIdx
	}

	splitter := chunker.NewSplitter(settings.ChunkSize, settings.ChunkOverlap)
	pipeline := ingest.NewPipeline(st, idx, client, splitter, logger)
	orchestrator := tutor.NewOrchestrator(st, idx, client, tutor.Options{
		HistoryWindow:  settings.HistoryWindow,
		RetrieverK:     settings.RetrieverK,
		MaxQueryLength: settings.MaxQueryLength,
		DefaultModel:   settings.DefaultModel,
	}, logger)

	server := api.NewServer(&api.Config{
		Store:        st,
		Index:        idx,
		Pipeline:     pipeline,
		Orchestrator: orchestrator,
		Settings:     settings,
		Logger:       logger,
	})

	// Periodic session cleanup in the background
	go cleanupLoop(ctx, st, settings.SessionIdleHours, logger)

	addr := "0.0.0.0:" + settings.Port
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Routes(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	log.Printf("Starting AI tutor server on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("HTTP server error: %v", err)
	}
	log.Println("Server stopped")
}

// cleanupLoop removes sessions with no activity past the idle window.
func cleanupLoop(ctx context.Context, st *store.Store, idleHours int, logger *slog.Logger) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := st.CleanupSessions(ctx, idleHours)
			if err != nil {
				logger.Warn("session cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("cleaned up idle sessions", "messages_removed", removed)
			}
		}
	}
}
