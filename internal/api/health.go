package api

import (
	"context"
	"net/http"
)

type healthChecker interface {
	Health(ctx context.Context) error
}

// handleHealth reports per-component health. The store and index are
// probed directly; the index is healthy by assumption when its backend
// exposes no probe (the in-memory index cannot fail).
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{}
	overall := "healthy"

	if err := s.store.Health(r.Context()); err != nil {
		components["database"] = "unhealthy: " + err.Error()
		overall = "unhealthy"
	} else {
		components["database"] = "healthy"
	}

	if hc, ok := s.index.(healthChecker); ok {
		if err := hc.Health(r.Context()); err != nil {
			components["vector_store"] = "unhealthy: " + err.Error()
			overall = "unhealthy"
		} else {
			components["vector_store"] = "healthy"
		}
	} else {
		components["vector_store"] = "healthy"
	}

	if s.settings.GoogleAPIKey == "" {
		components["llm"] = "unconfigured"
		if overall == "healthy" {
			overall = "degraded"
		}
	} else {
		components["llm"] = "configured"
	}

	status := http.StatusOK
	if overall == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":     overall,
		"components": components,
	})
}
