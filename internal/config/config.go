// Package config loads application settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Settings holds all runtime configuration for the tutor backend.
// Values come from environment variables with sensible defaults;
// a .env file is loaded by the entry points in development.
type Settings struct {
	// HTTP
	Port string

	// Durable store
	DatabasePath string

	// Vector index
	IndexBackend string // "qdrant" or "memory"
	QdrantHost   string
	QdrantPort   int

	// Ingestion
	UploadDir    string
	MaxUploadMB  int
	ChunkSize    int
	ChunkOverlap int

	// Retrieval + chat
	RetrieverK       int
	HistoryWindow    int
	MaxQueryLength   int
	SessionIdleHours int

	// Generation provider
	GoogleAPIKey   string
	DefaultModel   string
	EmbedModel     string
	EmbedDimension int
	ModelTimeout   time.Duration
	MaxRetries     int
	Temperature    float32

	// Daily quota resets at midnight in the provider's billing zone.
	QuotaResetZone string
}

// Load reads settings from the environment. The only hard requirement
// is GOOGLE_API_KEY; everything else has a default.
func Load() (*Settings, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY environment variable not set")
	}

	s := &Settings{
		Port:             getEnv("PORT", "8080"),
		DatabasePath:     getEnv("DATABASE_PATH", "tutor.db"),
		IndexBackend:     getEnv("INDEX_BACKEND", "qdrant"),
		QdrantHost:       getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:       getEnvInt("QDRANT_PORT", 6334),
		UploadDir:        getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadMB:      getEnvInt("MAX_UPLOAD_MB", 10),
		ChunkSize:        getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:     getEnvInt("CHUNK_OVERLAP", 200),
		RetrieverK:       getEnvInt("RETRIEVER_K", 2),
		HistoryWindow:    getEnvInt("HISTORY_WINDOW", 10),
		MaxQueryLength:   getEnvInt("MAX_QUERY_LENGTH", 2000),
		SessionIdleHours: getEnvInt("SESSION_IDLE_HOURS", 24),
		GoogleAPIKey:     apiKey,
		DefaultModel:     getEnv("DEFAULT_MODEL", "gemini-2.5-flash"),
		EmbedModel:       getEnv("EMBED_MODEL", "gemini-embedding-001"),
		EmbedDimension:   getEnvInt("EMBED_DIMENSION", 768),
		ModelTimeout:     time.Duration(getEnvInt("MODEL_TIMEOUT_SECONDS", 30)) * time.Second,
		MaxRetries:       getEnvInt("MODEL_MAX_RETRIES", 1),
		Temperature:      0.7,
		QuotaResetZone:   getEnv("QUOTA_RESET_ZONE", "America/Los_Angeles"),
	}

	if s.ChunkOverlap >= s.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", s.ChunkOverlap, s.ChunkSize)
	}

	return s, nil
}

// MaxUploadBytes returns the upload size limit in bytes.
func (s *Settings) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) * 1024 * 1024
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}
