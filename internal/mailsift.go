// Package internal wires configuration, storage, the extraction handlers,
// and the MCP tool server into a runnable application.
package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgellow/mailsift/internal/config"
	"github.com/dgellow/mailsift/internal/log"
	"github.com/dgellow/mailsift/internal/mcptools"
	"github.com/dgellow/mailsift/internal/server"
	"github.com/dgellow/mailsift/internal/storage"
	"github.com/dgellow/mailsift/internal/textenc"
)

// MailSift represents the complete extraction service
type MailSift struct {
	config     config.Config
	handler    http.Handler
	httpServer *server.HTTPServer
	storage    storage.Storage
	cleanup    *storage.CleanupManager
	mcpServer  *mcptools.Server
}

// NewMailSift creates the application with all its dependencies wired
func NewMailSift(ctx context.Context, cfg config.Config, version string) (*MailSift, error) {
	store, err := setupStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up storage: %w", err)
	}

	decoder, err := textenc.NewDecoder(cfg.Extract.Encodings)
	if err != nil {
		return nil, fmt.Errorf("failed to build text decoder: %w", err)
	}

	m := &MailSift{
		config:  cfg,
		storage: store,
	}

	if r := cfg.Storage.Retention; r != nil {
		m.cleanup = storage.NewCleanupManager(store, r.SweepInterval, r.MaxAge, r.MaxEntries)
	}

	if cfg.MCP.Enabled {
		m.mcpServer = mcptools.NewServer(version, store, cfg.Extract.HistoryLimit, cfg.MCP.BasePath)
	}

	m.handler = buildHTTPHandler(cfg, store, decoder, m.mcpServer)
	m.httpServer = server.NewHTTPServer(m.handler, cfg.Server.Addr)

	return m, nil
}

// Handler exposes the fully wired HTTP handler. Integration tests serve it
// through httptest instead of binding a real port.
func (m *MailSift) Handler() http.Handler {
	return m.handler
}

// Run starts the service and blocks until shutdown
func (m *MailSift) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if m.cleanup != nil {
		m.cleanup.Start(ctx)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := m.httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	fields := map[string]any{
		"addr":    m.config.Server.Addr,
		"storage": string(m.config.Storage.Type),
	}
	if m.config.Server.BaseURL != "" {
		fields["base_url"] = m.config.Server.BaseURL
	}
	if m.mcpServer != nil {
		fields["mcp_path"] = m.config.MCP.BasePath
	}
	log.LogInfoWithFields("mailsift", "Service started", fields)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var shutdownReason string
	select {
	case sig := <-sigChan:
		shutdownReason = fmt.Sprintf("received signal %v", sig)
	case err := <-errChan:
		shutdownReason = fmt.Sprintf("server error: %v", err)
	case <-ctx.Done():
		shutdownReason = "context cancelled"
	}

	log.LogInfoWithFields("mailsift", "Shutting down", map[string]any{
		"reason": shutdownReason,
	})

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if m.cleanup != nil {
		m.cleanup.Stop()
	}

	if m.mcpServer != nil {
		if err := m.mcpServer.Shutdown(shutdownCtx); err != nil {
			log.LogErrorWithFields("mailsift", "Failed to shut down MCP server", map[string]any{
				"error": err.Error(),
			})
		}
	}

	if err := m.httpServer.Stop(shutdownCtx); err != nil {
		log.LogErrorWithFields("mailsift", "Failed to stop HTTP server", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	if err := m.storage.Close(); err != nil {
		log.LogErrorWithFields("mailsift", "Failed to close storage", map[string]any{
			"error": err.Error(),
		})
	}

	log.Logf("Application shutdown complete (%s)", shutdownReason)
	return nil
}

// setupStorage creates the artifact store selected by the config
func setupStorage(ctx context.Context, cfg config.Config) (storage.Storage, error) {
	switch cfg.Storage.Type {
	case config.StorageTypeFirestore:
		fs := cfg.Storage.Firestore
		log.LogInfoWithFields("storage", "Using Firestore storage", map[string]any{
			"project":  fs.ProjectID,
			"database": fs.Database,
		})
		return storage.NewFirestoreStorage(ctx, fs.ProjectID, fs.Database, fs.CollectionPrefix, []byte(fs.CredentialsJSON))

	case config.StorageTypeMemory:
		log.LogInfoWithFields("storage", "Using in-memory storage", map[string]any{
			"warning": "extraction history will be lost on restart",
		})
		return storage.NewMemoryStorage(), nil

	case config.StorageTypeFilesystem:
		log.LogInfoWithFields("storage", "Using filesystem storage", map[string]any{
			"dir": cfg.Storage.OutputDir,
		})
		return storage.NewFilesystemStorage(cfg.Storage.OutputDir)

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}
}

// buildHTTPHandler assembles the route table with per-group middleware
func buildHTTPHandler(cfg config.Config, store storage.Storage, decoder *textenc.Decoder, mcpSrv *mcptools.Server) http.Handler {
	mux := http.NewServeMux()

	corsMiddleware := server.NewCORSMiddleware(cfg.Server.AllowedOrigins)
	webMiddleware := []server.MiddlewareFunc{
		server.NewLoggerMiddleware("web", cfg.Server.TrustProxy),
		server.NewRecoverMiddleware("web"),
	}
	apiMiddleware := []server.MiddlewareFunc{
		corsMiddleware,
		server.NewLoggerMiddleware("api", cfg.Server.TrustProxy),
		server.NewRecoverMiddleware("api"),
	}

	// Health endpoint stays outside the middleware chain so load balancer
	// probes don't flood the request log
	mux.Handle("/health", server.NewHealthHandler())

	indexHandler := server.NewIndexHandler(cfg.Server.MaxUploadBytes, cfg.Extract.HistoryLimit)
	mux.Handle("/", server.ChainMiddleware(indexHandler, webMiddleware...))

	extractHandlers := server.NewExtractHandlers(store, decoder, cfg.Server.MaxUploadBytes)
	mux.Handle("/api/extract", server.ChainMiddleware(http.HandlerFunc(extractHandlers.UploadHandler), apiMiddleware...))
	mux.Handle("/api/extract-text", server.ChainMiddleware(http.HandlerFunc(extractHandlers.TextHandler), apiMiddleware...))
	mux.Handle("/api/download-csv", server.ChainMiddleware(http.HandlerFunc(extractHandlers.DownloadCSVHandler), apiMiddleware...))

	historyHandlers := server.NewHistoryHandlers(store, cfg.Extract.HistoryLimit)
	mux.Handle("/api/history", server.ChainMiddleware(http.HandlerFunc(historyHandlers.ListHandler), apiMiddleware...))
	mux.Handle("/api/download/{filename}", server.ChainMiddleware(http.HandlerFunc(historyHandlers.DownloadHandler), apiMiddleware...))

	clearMiddleware := append(append([]server.MiddlewareFunc{}, apiMiddleware...),
		server.NewAdminAuthMiddleware(adminTokenHash(cfg)))
	mux.Handle("/api/clear-history", server.ChainMiddleware(http.HandlerFunc(historyHandlers.ClearHandler), clearMiddleware...))

	if mcpSrv != nil {
		mcpMiddleware := []server.MiddlewareFunc{
			corsMiddleware,
			server.NewLoggerMiddleware("mcp", cfg.Server.TrustProxy),
			server.NewRecoverMiddleware("mcp"),
		}
		mux.Handle(cfg.MCP.BasePath, server.ChainMiddleware(mcpSrv.Handler(), mcpMiddleware...))
	}

	return mux
}

// adminTokenHash returns the configured bcrypt hash, or nil when the
// clear-history endpoint is left open
func adminTokenHash(cfg config.Config) []byte {
	if !cfg.Admin.Enabled() {
		return nil
	}
	return []byte(cfg.Admin.HashedToken)
}
