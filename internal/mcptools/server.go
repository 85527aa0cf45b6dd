// Package mcptools exposes the extraction operations as MCP tools over
// streamable HTTP, so agents can call them without going through the web UI.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/dgellow/mailsift/internal/extract"
	"github.com/dgellow/mailsift/internal/log"
	"github.com/dgellow/mailsift/internal/storage"
)

var extractEmailsTool = mcp.Tool{
	Name:        "extract_emails",
	Description: "Extract email addresses from text. Returns the deduplicated addresses sorted alphabetically, each with a company label derived from its domain.",
	InputSchema: mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]any{
			"text": map[string]any{
				"type":        "string",
				"description": "The text to scan for email addresses",
			},
		},
		Required: []string{"text"},
	},
}

var listExtractionsTool = mcp.Tool{
	Name:        "list_extractions",
	Description: "List recent extraction runs, newest first.",
	InputSchema: mcp.ToolInputSchema{
		Type:       "object",
		Properties: map[string]any{},
	},
}

// Server wires the extraction tools into an MCP server with a streamable
// HTTP transport.
type Server struct {
	storage      storage.Storage
	historyLimit int
	mcpServer    *mcpserver.MCPServer
	transport    *mcpserver.StreamableHTTPServer
}

// NewServer creates the MCP tool server. basePath is where the transport
// expects to be mounted on the main mux.
func NewServer(version string, storage storage.Storage, historyLimit int, basePath string) *Server {
	s := &Server{
		storage:      storage,
		historyLimit: historyLimit,
	}

	s.mcpServer = mcpserver.NewMCPServer("mailsift", version,
		mcpserver.WithToolCapabilities(true),
	)
	s.mcpServer.AddTool(extractEmailsTool, s.handleExtractEmails)
	s.mcpServer.AddTool(listExtractionsTool, s.handleListExtractions)

	s.transport = mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithEndpointPath(basePath),
	)

	return s
}

// Handler returns the streamable HTTP transport
func (s *Server) Handler() http.Handler {
	return s.transport
}

// Shutdown stops the transport and closes active sessions
func (s *Server) Shutdown(ctx context.Context) error {
	return s.transport.Shutdown(ctx)
}

type extractResult struct {
	Success bool            `json:"success"`
	Total   int             `json:"total"`
	Emails  []string        `json:"emails"`
	Data    []extract.Entry `json:"data"`
}

type historyResult struct {
	Success     bool              `json:"success"`
	Extractions []storage.Summary `json:"extractions"`
}

func (s *Server) handleExtractEmails(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil || text == "" {
		return mcp.NewToolResultError("No text provided"), nil
	}

	entries := extract.Entries(text)
	emails := make([]string, len(entries))
	for i, entry := range entries {
		emails[i] = entry.Email
	}

	payload, err := json.Marshal(extractResult{
		Success: true,
		Total:   len(entries),
		Emails:  emails,
		Data:    entries,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding extraction result: %w", err)
	}

	return mcp.NewToolResultText(string(payload)), nil
}

func (s *Server) handleListExtractions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summaries, err := s.storage.List(ctx, s.historyLimit)
	if err != nil {
		log.LogErrorWithFields("mcp", "Failed to list extractions", map[string]any{
			"error": err.Error(),
		})
		return mcp.NewToolResultError("Failed to load extraction history"), nil
	}

	payload, err := json.Marshal(historyResult{
		Success:     true,
		Extractions: summaries,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding history result: %w", err)
	}

	return mcp.NewToolResultText(string(payload)), nil
}
