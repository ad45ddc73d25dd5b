package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bull/ai-tutor-server/internal/extract"
	"github.com/bull/ai-tutor-server/internal/ingest"
	"github.com/bull/ai-tutor-server/internal/llm"
	"github.com/bull/ai-tutor-server/internal/store"
	"github.com/bull/ai-tutor-server/internal/tutor"
)

// handleChat answers one conversational turn.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.metrics.Inc("chat_requests")

	var req tutor.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.Inc("chat_errors")
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.orchestrator.Ask(r.Context(), req)
	if err != nil {
		s.metrics.Inc("chat_errors")
		s.writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeChatError maps orchestrator errors onto status codes. Quota
// exhaustion is distinguishable from generic upstream failure and carries
// the daily-reset retry hint.
func (s *Server) writeChatError(w http.ResponseWriter, err error) {
	var quota *llm.QuotaError
	switch {
	case errors.As(err, &quota):
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"detail": map[string]any{
				"message":             "Daily API limit reached. Quota resets at midnight in the provider's billing time zone.",
				"retry_after_seconds": int(quota.RetryAfter.Seconds()),
			},
		})
	case errors.Is(err, tutor.ErrEmptyQuestion),
		errors.Is(err, tutor.ErrQueryTooLong),
		errors.Is(err, tutor.ErrBadSessionID):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("chat turn failed", "error", err)
		writeError(w, http.StatusInternalServerError, "An error occurred processing your request. Please try again.")
	}
}

// handleUpload ingests one uploaded document.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	s.metrics.Inc("upload_requests")

	r.Body = http.MaxBytesReader(w, r.Body, s.settings.MaxUploadBytes())
	file, header, err := r.FormFile("file")
	if err != nil {
		s.metrics.Inc("upload_errors")
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf(
				"file exceeds the %d MB upload limit", s.settings.MaxUploadMB))
			return
		}
		writeError(w, http.StatusBadRequest, "missing file upload")
		return
	}
	defer file.Close()

	if !extract.Allowed(header.Filename) {
		s.metrics.Inc("upload_errors")
		writeError(w, http.StatusBadRequest, fmt.Sprintf(
			"unsupported file type %q, allowed: %s",
			filepath.Ext(header.Filename), strings.Join(extract.AllowedExtensions, ", ")))
		return
	}

	safeName := extract.SanitizeFilename(header.Filename)
	ext := strings.ToLower(filepath.Ext(safeName))

	tmp, err := os.CreateTemp(s.settings.UploadDir, "upload-*"+ext)
	if err != nil {
		s.metrics.Inc("upload_errors")
		s.logger.Error("failed to create temp file", "error", err)
		writeError(w, http.StatusInternalServerError, "An error occurred while uploading the document")
		return
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, file)
	tmp.Close()
	if err != nil {
		s.metrics.Inc("upload_errors")
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf(
				"file exceeds the %d MB upload limit", s.settings.MaxUploadMB))
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	result, err := s.pipeline.Ingest(r.Context(), ingest.Request{
		Path:      tmp.Name(),
		Filename:  safeName,
		SizeBytes: size,
		FileType:  ext,
	})
	if err != nil {
		s.metrics.Inc("upload_errors")
		s.writeIngestError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    fmt.Sprintf("File %q uploaded and indexed successfully", safeName),
		"file_id":    result.DocumentID,
		"filename":   safeName,
		"size_bytes": size,
		"chunks":     result.Chunks,
	})
}

// writeIngestError maps pipeline errors onto status codes; a duplicate
// hash is a conflict, not a server error.
func (s *Server) writeIngestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrDuplicateHash):
		writeError(w, http.StatusConflict, "This file has already been uploaded")
	case errors.Is(err, extract.ErrUnsupportedType),
		errors.Is(err, extract.ErrEmptyContent):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("ingestion failed", "error", err)
		writeError(w, http.StatusInternalServerError, "An error occurred while uploading the document")
	}
}

// handleListDocs lists all ingested documents.
func (s *Server) handleListDocs(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments(r.Context())
	if err != nil {
		s.logger.Error("failed to list documents", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve documents")
		return
	}
	if docs == nil {
		docs = []store.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// handleDeleteDoc removes a document from both the index and the store.
func (s *Server) handleDeleteDoc(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileID int64 `json:"file_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FileID <= 0 {
		writeError(w, http.StatusBadRequest, "file_id must be a positive integer")
		return
	}

	if err := s.pipeline.Delete(r.Context(), req.FileID); err != nil {
		s.logger.Error("failed to delete document", "document_id", req.FileID, "error", err)
		writeError(w, http.StatusInternalServerError, "An error occurred while deleting the document")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Document (ID: %d) deleted successfully", req.FileID),
		"file_id": req.FileID,
	})
}

// handleAPIStats reports usage statistics, including the call savings from
// the combined answer+emotion generation design.
func (s *Server) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		s.logger.Error("failed to read stats", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve statistics")
		return
	}

	chunkCount, err := s.index.Stats(r.Context())
	if err != nil {
		s.logger.Warn("failed to read index stats", "error", err)
	}

	// Per message: embedding + reformulation + combined answer-with-emotion,
	// versus a fourth call for emotion classification in the split design.
	oldCalls := stats.TotalMessages * 4
	newCalls := stats.TotalMessages * 3

	writeJSON(w, http.StatusOK, map[string]any{
		"total_chat_messages":           stats.TotalMessages,
		"api_calls_with_old_method":     oldCalls,
		"api_calls_with_optimization":   newCalls,
		"calls_saved":                   oldCalls - newCalls,
		"documents_indexed":             stats.TotalDocuments,
		"chunk_count":                   chunkCount,
		"unique_sessions":               stats.UniqueSessions,
		"active_sessions_24h":           stats.ActiveSessions,
	})
}
