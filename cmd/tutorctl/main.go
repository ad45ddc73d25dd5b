// Package main provides the tutorctl maintenance CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/ai-tutor-server/internal/index"
	"github.com/bull/ai-tutor-server/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "tutorctl",
	Short: "AI tutor backend maintenance tool",
	Long:  "CLI tool for inspecting and maintaining the tutor document index and chat database",
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database and index statistics",
	Long: `Prints message, document and session counts from the chat database,
plus the number of chunks stored in the Qdrant index.

Environment variables:
  DATABASE_PATH  SQLite database path (default: tutor.db)
  QDRANT_HOST    Qdrant hostname (default: localhost)
  QDRANT_PORT    Qdrant gRPC port (default: 6334)`,
	RunE: runStats,
}

var clearIndexCmd = &cobra.Command{
	Use:   "clear-index",
	Short: "Delete all chunks from the vector index",
	Long: `Drops and recreates the Qdrant collection. Document metadata in the
chat database is left untouched; use this before a full re-ingest.`,
	RunE: runClearIndex,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup-sessions",
	Short: "Remove chat sessions idle past the retention window",
	RunE:  runCleanup,
}

var (
	idleHours int
	logDays   int
)

func init() {
	cleanupCmd.Flags().IntVar(&idleHours, "idle-hours", 24, "delete sessions with no activity for this many hours")
	cleanupCmd.Flags().IntVar(&logDays, "log-days", 0, "also delete chat logs older than this many days (0 = keep)")

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(clearIndexCmd)
	rootCmd.AddCommand(cleanupCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read database stats: %w", err)
	}

	fmt.Printf("Chat messages:       %d\n", stats.TotalMessages)
	fmt.Printf("Documents:           %d\n", stats.TotalDocuments)
	fmt.Printf("Unique sessions:     %d\n", stats.UniqueSessions)
	fmt.Printf("Active (24h):        %d\n", stats.ActiveSessions)

	idx, err := openIndex(ctx)
	if err != nil {
		fmt.Printf("Index:               unavailable (%v)\n", err)
		return nil
	}
	defer idx.Close()

	chunks, err := idx.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read index stats: %w", err)
	}
	fmt.Printf("Indexed chunks:      %d\n", chunks)
	return nil
}

func runClearIndex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	idx, err := openIndex(ctx)
	if err != nil {
		return err
	}
	defer idx.Close()

	fmt.Println("Clearing index...")
	if err := idx.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	fmt.Println("Index cleared")
	return nil
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	sessions, err := st.CleanupSessions(ctx, idleHours)
	if err != nil {
		return fmt.Errorf("session cleanup failed: %w", err)
	}
	fmt.Printf("Removed %d idle sessions\n", sessions)

	if logDays > 0 {
		logs, err := st.CleanupOldLogs(ctx, logDays)
		if err != nil {
			return fmt.Errorf("log cleanup failed: %w", err)
		}
		fmt.Printf("Removed %d old chat log rows\n", logs)
	}
	return nil
}

func openStore() (*store.Store, error) {
	path := getEnv("DATABASE_PATH", "tutor.db")
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}
	return st, nil
}

// openIndex connects to Qdrant without an embedder; maintenance
// commands never run queries.
func openIndex(ctx context.Context) (*index.Qdrant, error) {
	host := getEnv("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)
	dimension := getEnvInt("EMBED_DIMENSION", 768)

	idx, err := index.NewQdrant(ctx, host, port, dimension, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}
	return idx, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}
