// Package store persists document metadata and chat history in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// ErrDuplicateHash is returned when a document with the same content hash
// already exists. Identity is the content hash, not the filename.
var ErrDuplicateHash = errors.New("document with this content already exists")

// Document is a stored metadata record for an ingested file. Records are
// never mutated; destruction removes the record and its indexed chunks.
type Document struct {
	ID          int64     `json:"id"`
	Filename    string    `json:"filename"`
	SizeBytes   int64     `json:"size_bytes"`
	FileType    string    `json:"file_type"`
	ContentHash string    `json:"-"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// TurnRecord is one append-only chat exchange for a session.
type TurnRecord struct {
	SessionID string
	Question  string
	Answer    string
	Model     string
	Emotion   string
	CreatedAt time.Time
}

// Stats summarizes stored records.
type Stats struct {
	TotalMessages  int `json:"total_messages"`
	TotalDocuments int `json:"total_documents"`
	UniqueSessions int `json:"unique_sessions"`
	ActiveSessions int `json:"active_sessions_24h"`
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	filename TEXT NOT NULL,
	size_bytes INTEGER NOT NULL,
	file_type TEXT NOT NULL,
	content_hash TEXT NOT NULL UNIQUE,
	uploaded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);

CREATE TABLE IF NOT EXISTS chat_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	model TEXT NOT NULL,
	emotion TEXT NOT NULL DEFAULT 'neutral',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_chat_logs_session ON chat_logs(session_id);
CREATE INDEX IF NOT EXISTS idx_chat_logs_created ON chat_logs(created_at);
`

// Store wraps the SQLite database. database/sql provides the connection
// pool; WAL mode lets readers proceed during writes.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=10000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Health verifies the database is reachable.
func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertDocument creates a metadata record and returns its assigned id.
// The content-hash unique constraint enforces deduplication; a collision
// surfaces as ErrDuplicateHash with no mutation having occurred.
func (s *Store) InsertDocument(ctx context.Context, filename string, sizeBytes int64, fileType, contentHash string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (filename, size_bytes, file_type, content_hash) VALUES (?, ?, ?, ?)`,
		filename, sizeBytes, fileType, contentHash)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return 0, ErrDuplicateHash
		}
		return 0, fmt.Errorf("insert document: %w", err)
	}
	return result.LastInsertId()
}

// DeleteDocument removes a metadata record. Returns false when no record
// with that id existed.
func (s *Store) DeleteDocument(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete document %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetDocument fetches one metadata record, or nil when absent.
func (s *Store) GetDocument(ctx context.Context, id int64) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, size_bytes, file_type, content_hash, uploaded_at FROM documents WHERE id = ?`, id)

	var d Document
	err := row.Scan(&d.ID, &d.Filename, &d.SizeBytes, &d.FileType, &d.ContentHash, &d.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document %d: %w", id, err)
	}
	return &d, nil
}

// ListDocuments returns all records, most recently uploaded first.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, size_bytes, file_type, content_hash, uploaded_at FROM documents ORDER BY uploaded_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Filename, &d.SizeBytes, &d.FileType, &d.ContentHash, &d.UploadedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// AppendTurn records one completed chat exchange.
func (s *Store) AppendTurn(ctx context.Context, sessionID, question, answer, model, emotion string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_logs (session_id, question, answer, model, emotion) VALUES (?, ?, ?, ?, ?)`,
		sessionID, question, answer, model, emotion)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// RecentTurns returns the last limit turns of a session in chronological
// order. The fetch is most-recent-first then reversed, so the window always
// holds the newest turns.
func (s *Store) RecentTurns(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, question, answer, model, emotion, created_at
		 FROM chat_logs WHERE session_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent turns: %w", err)
	}
	defer rows.Close()

	var turns []TurnRecord
	for rows.Next() {
		var t TurnRecord
		if err := rows.Scan(&t.SessionID, &t.Question, &t.Answer, &t.Model, &t.Emotion, &t.CreatedAt); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order for prompting.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// GetStats returns record counts for observability.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	var st Stats
	queries := []struct {
		sql  string
		dest *int
	}{
		{`SELECT COUNT(*) FROM chat_logs`, &st.TotalMessages},
		{`SELECT COUNT(*) FROM documents`, &st.TotalDocuments},
		{`SELECT COUNT(DISTINCT session_id) FROM chat_logs`, &st.UniqueSessions},
		{`SELECT COUNT(DISTINCT session_id) FROM chat_logs WHERE created_at > datetime('now', '-24 hours')`, &st.ActiveSessions},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.sql).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
	}
	return &st, nil
}

// CleanupSessions deletes all logs of sessions idle longer than the given
// number of hours. Returns the number of messages removed.
func (s *Store) CleanupSessions(ctx context.Context, idleHours int) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM chat_logs WHERE session_id IN (
			SELECT session_id FROM chat_logs
			GROUP BY session_id
			HAVING MAX(created_at) < datetime('now', '-' || ? || ' hours')
		)`, idleHours)
	if err != nil {
		return 0, fmt.Errorf("cleanup sessions: %w", err)
	}
	return result.RowsAffected()
}

// CleanupOldLogs deletes chat logs older than the given number of days.
func (s *Store) CleanupOldLogs(ctx context.Context, days int) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM chat_logs WHERE created_at < datetime('now', '-' || ? || ' days')`, days)
	if err != nil {
		return 0, fmt.Errorf("cleanup old logs: %w", err)
	}
	return result.RowsAffected()
}
