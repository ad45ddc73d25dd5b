package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestInsertDocument_DuplicateHash(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.InsertDocument(ctx, "notes.pdf", 1024, ".pdf", "abc123")
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	// Same content, different filename: still a duplicate.
	_, err = st.InsertDocument(ctx, "notes-copy.pdf", 1024, ".pdf", "abc123")
	assert.ErrorIs(t, err, ErrDuplicateHash)

	// Different content is fine.
	_, err = st.InsertDocument(ctx, "other.txt", 10, ".txt", "def456")
	assert.NoError(t, err)

	docs, err := st.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestDeleteDocument_Idempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.InsertDocument(ctx, "notes.txt", 5, ".txt", "h1")
	require.NoError(t, err)

	deleted, err := st.DeleteDocument(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	// Deleting again succeeds but reports nothing removed.
	deleted, err = st.DeleteDocument(ctx, id)
	require.NoError(t, err)
	assert.False(t, deleted)

	// The freed hash can be reused.
	_, err = st.InsertDocument(ctx, "notes.txt", 5, ".txt", "h1")
	assert.NoError(t, err)
}

func TestGetDocument_Absent(t *testing.T) {
	st := newTestStore(t)

	doc, err := st.GetDocument(context.Background(), 9999)
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestGetDocument_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.InsertDocument(ctx, "lecture.docx", 2048, ".docx", "hash-x")
	require.NoError(t, err)

	doc, err := st.GetDocument(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "lecture.docx", doc.Filename)
	assert.Equal(t, int64(2048), doc.SizeBytes)
	assert.Equal(t, ".docx", doc.FileType)
	assert.Equal(t, "hash-x", doc.ContentHash)
	assert.False(t, doc.UploadedAt.IsZero())
}

func TestRecentTurns_WindowAndOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		q := fmt.Sprintf("question %d", i)
		a := fmt.Sprintf("answer %d", i)
		require.NoError(t, st.AppendTurn(ctx, "sess-1", q, a, "gemini-2.5-flash", "neutral"))
	}
	require.NoError(t, st.AppendTurn(ctx, "sess-2", "other", "other", "gemini-2.5-flash", "happy"))

	// Window of 3 keeps the newest turns, in chronological order.
	turns, err := st.RecentTurns(ctx, "sess-1", 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "question 3", turns[0].Question)
	assert.Equal(t, "question 4", turns[1].Question)
	assert.Equal(t, "question 5", turns[2].Question)

	// Sessions are isolated.
	turns, err = st.RecentTurns(ctx, "sess-2", 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "other", turns[0].Question)

	// Unknown session yields an empty history, not an error.
	turns, err = st.RecentTurns(ctx, "nope", 10)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestGetStats(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.InsertDocument(ctx, "a.txt", 1, ".txt", "ha")
	require.NoError(t, err)
	_, err = st.InsertDocument(ctx, "b.txt", 1, ".txt", "hb")
	require.NoError(t, err)

	require.NoError(t, st.AppendTurn(ctx, "s1", "q", "a", "m", "neutral"))
	require.NoError(t, st.AppendTurn(ctx, "s1", "q", "a", "m", "neutral"))
	require.NoError(t, st.AppendTurn(ctx, "s2", "q", "a", "m", "happy"))

	stats, err := st.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalMessages)
	assert.Equal(t, 2, stats.TotalDocuments)
	assert.Equal(t, 2, stats.UniqueSessions)
	assert.Equal(t, 2, stats.ActiveSessions)
}

func TestCleanupSessions_KeepsActive(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.AppendTurn(ctx, "fresh", "q", "a", "m", "neutral"))

	// Nothing is idle yet, so nothing is removed.
	removed, err := st.CleanupSessions(ctx, 24)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)

	turns, err := st.RecentTurns(ctx, "fresh", 10)
	require.NoError(t, err)
	assert.Len(t, turns, 1)
}

func TestCleanupSessions_RemovesIdle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.AppendTurn(ctx, "stale", "q", "a", "m", "neutral"))
	require.NoError(t, st.AppendTurn(ctx, "fresh", "q", "a", "m", "neutral"))

	// Backdate the stale session past the idle window.
	_, err := st.db.ExecContext(ctx,
		`UPDATE chat_logs SET created_at = datetime('now', '-48 hours') WHERE session_id = 'stale'`)
	require.NoError(t, err)

	removed, err := st.CleanupSessions(ctx, 24)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	turns, err := st.RecentTurns(ctx, "stale", 10)
	require.NoError(t, err)
	assert.Empty(t, turns)

	turns, err = st.RecentTurns(ctx, "fresh", 10)
	require.NoError(t, err)
	assert.Len(t, turns, 1)
}

func TestCleanupOldLogs(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.AppendTurn(ctx, "s", "old", "a", "m", "neutral"))
	require.NoError(t, st.AppendTurn(ctx, "s", "new", "a", "m", "neutral"))

	_, err := st.db.ExecContext(ctx,
		`UPDATE chat_logs SET created_at = datetime('now', '-10 days') WHERE question = 'old'`)
	require.NoError(t, err)

	removed, err := st.CleanupOldLogs(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	turns, err := st.RecentTurns(ctx, "s", 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "new", turns[0].Question)
}
