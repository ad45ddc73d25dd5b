package api

import (
	"net/http"
	"sync"
)

// Metrics holds simple request counters. Counter names are fixed at the
// call sites; unknown names create new counters on first increment.
type Metrics struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewMetrics() *Metrics {
	return &Metrics{counters: make(map[string]int64)}
}

func (m *Metrics) Inc(name string) {
	m.mu.Lock()
	m.counters[name]++
	m.mu.Unlock()
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.counters))
	for k, v := range m.counters {
		out[k] = v
	}
	return out
}

// handleMetrics exposes request counters plus store and index totals.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"counters": s.metrics.Snapshot(),
	}

	if stats, err := s.store.GetStats(r.Context()); err == nil {
		body["total_messages"] = stats.TotalMessages
		body["total_documents"] = stats.TotalDocuments
		body["unique_sessions"] = stats.UniqueSessions
		body["active_sessions_24h"] = stats.ActiveSessions
	} else {
		s.logger.Warn("failed to read store stats", "error", err)
	}

	if chunks, err := s.index.Stats(r.Context()); err == nil {
		body["chunk_count"] = chunks
	} else {
		s.logger.Warn("failed to read index stats", "error", err)
	}

	writeJSON(w, http.StatusOK, body)
}
