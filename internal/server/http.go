package server

import (
	"context"
	"errors"
	"net/http"

	jsonwriter "github.com/dgellow/mailsift/internal/json"
	"github.com/dgellow/mailsift/internal/log"
)

// HTTPServer manages the HTTP server lifecycle
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer creates a new HTTP server with the given handler and address
func NewHTTPServer(handler http.Handler, addr string) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:    addr,
			Handler: handler,
		},
	}
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	log.LogInfoWithFields("http", "HTTP server starting", map[string]any{
		"addr": h.server.Addr,
	})

	if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	log.LogInfoWithFields("http", "HTTP server stopping", map[string]any{
		"addr": h.server.Addr,
	})

	if err := h.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	log.LogInfoWithFields("http", "HTTP server stopped", map[string]any{
		"addr": h.server.Addr,
	})
	return nil
}

// HealthHandler handles health check requests
type HealthHandler struct{}

// NewHealthHandler creates a new health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// ServeHTTP implements http.Handler for health checks
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// IndexHandler serves the embedded upload page. Registered on the root
// catch-all, so it answers unknown paths with the JSON 404 envelope.
type IndexHandler struct {
	data IndexPageData
}

// NewIndexHandler creates the index handler with the display values the
// page template needs.
func NewIndexHandler(maxUploadBytes int64, historyLimit int) *IndexHandler {
	return &IndexHandler{
		data: IndexPageData{
			MaxUploadMB:  maxUploadBytes >> 20,
			HistoryLimit: historyLimit,
		},
	}
}

// ServeHTTP implements http.Handler for the index page
func (h *IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		jsonwriter.WriteNotFound(w, "Not found")
		return
	}
	if r.Method != http.MethodGet {
		jsonwriter.WriteMethodNotAllowed(w, "Method not allowed")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexPageTemplate.Execute(w, h.data); err != nil {
		log.LogErrorWithFields("server", "Failed to render index page", map[string]any{
			"error": err.Error(),
		})
	}
}
