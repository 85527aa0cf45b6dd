package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/singleflight"

	jsonwriter "github.com/dgellow/mailsift/internal/json"
	"github.com/dgellow/mailsift/internal/log"
	"github.com/dgellow/mailsift/internal/storage"
)

// HistoryHandlers handles artifact download and history endpoints
type HistoryHandlers struct {
	storage      storage.Storage
	historyLimit int
	listGroup    singleflight.Group
}

// NewHistoryHandlers creates a new history handlers instance
func NewHistoryHandlers(storage storage.Storage, historyLimit int) *HistoryHandlers {
	return &HistoryHandlers{
		storage:      storage,
		historyLimit: historyLimit,
	}
}

// HistoryResponse lists recent extractions, newest first
type HistoryResponse struct {
	Success     bool              `json:"success"`
	Extractions []storage.Summary `json:"extractions"`
}

// ClearResponse reports how many artifact files a clear removed
type ClearResponse struct {
	Success bool `json:"success"`
	Removed int  `json:"removed"`
}

// ListHandler returns the most recent extraction summaries
func (h *HistoryHandlers) ListHandler(w http.ResponseWriter, r *http.Request) {
	// Only accept GET
	if r.Method != http.MethodGet {
		jsonwriter.WriteMethodNotAllowed(w, "Method not allowed")
		return
	}

	// Concurrent requests share one storage scan. The scan runs on a
	// detached context so it does not die with whichever request
	// happened to start it.
	result, err, _ := h.listGroup.Do("list", func() (any, error) {
		return h.storage.List(context.WithoutCancel(r.Context()), h.historyLimit)
	})
	if err != nil {
		log.LogErrorWithFields("history", "Failed to list extractions", map[string]any{
			"error": err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Failed to load extraction history")
		return
	}

	_ = jsonwriter.Write(w, HistoryResponse{
		Success:     true,
		Extractions: result.([]storage.Summary),
	})
}

// DownloadHandler serves a stored artifact as an attachment
func (h *HistoryHandlers) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	// Only accept GET
	if r.Method != http.MethodGet {
		jsonwriter.WriteMethodNotAllowed(w, "Method not allowed")
		return
	}

	filename := r.PathValue("filename")
	data, err := h.storage.Open(r.Context(), filename)
	if err != nil {
		if errors.Is(err, storage.ErrArtifactNotFound) {
			jsonwriter.WriteNotFound(w, "File not found")
			return
		}
		log.LogErrorWithFields("history", "Failed to open artifact", map[string]any{
			"filename": filename,
			"error":    err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Failed to read artifact")
		return
	}

	name := storage.CleanFilename(filename)
	w.Header().Set("Content-Type", artifactContentType(name))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ClearHandler deletes every stored artifact. Admin auth is enforced by
// middleware, not here.
func (h *HistoryHandlers) ClearHandler(w http.ResponseWriter, r *http.Request) {
	// Only accept POST
	if r.Method != http.MethodPost {
		jsonwriter.WriteMethodNotAllowed(w, "Method not allowed")
		return
	}

	removed, err := h.storage.Clear(r.Context())
	if err != nil {
		log.LogErrorWithFields("history", "Failed to clear extraction history", map[string]any{
			"error": err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Failed to clear extraction history")
		return
	}

	log.LogInfoWithFields("history", "Extraction history cleared", map[string]any{
		"removed": removed,
	})

	_ = jsonwriter.Write(w, ClearResponse{
		Success: true,
		Removed: removed,
	})
}

func artifactContentType(filename string) string {
	if strings.HasSuffix(filename, ".csv") {
		return "text/csv; charset=utf-8"
	}
	return "application/json"
}
