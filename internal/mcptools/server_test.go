package mcptools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgellow/mailsift/internal/extract"
	"github.com/dgellow/mailsift/internal/storage"
)

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestExtractEmailsTool(t *testing.T) {
	s := NewServer("test", storage.NewMemoryStorage(), 20, "/mcp")

	t.Run("extracts and sorts", func(t *testing.T) {
		req := callRequest("extract_emails", map[string]any{
			"text": "Ping Zoe@last.org, adam@first.com and ZOE@LAST.ORG",
		})

		result, err := s.handleExtractEmails(context.Background(), req)
		require.NoError(t, err)
		require.False(t, result.IsError)

		var parsed extractResult
		require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &parsed))
		assert.True(t, parsed.Success)
		assert.Equal(t, 2, parsed.Total)
		assert.Equal(t, []string{"adam@first.com", "Zoe@last.org"}, parsed.Emails)
		assert.Equal(t, "Last", parsed.Data[1].Company)
	})

	t.Run("nothing persisted", func(t *testing.T) {
		store := storage.NewMemoryStorage()
		srv := NewServer("test", store, 20, "/mcp")

		req := callRequest("extract_emails", map[string]any{"text": "a@b.co"})
		_, err := srv.handleExtractEmails(context.Background(), req)
		require.NoError(t, err)

		summaries, err := store.List(context.Background(), 20)
		require.NoError(t, err)
		assert.Empty(t, summaries)
	})

	t.Run("empty text", func(t *testing.T) {
		req := callRequest("extract_emails", map[string]any{"text": ""})

		result, err := s.handleExtractEmails(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})

	t.Run("missing text", func(t *testing.T) {
		req := callRequest("extract_emails", map[string]any{})

		result, err := s.handleExtractEmails(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})
}

func TestListExtractionsTool(t *testing.T) {
	store := storage.NewMemoryStorage()
	base := time.Date(2024, 5, 2, 8, 0, 0, 0, time.Local)

	for i, source := range []string{"first.txt", "second.txt"} {
		_, err := store.Save(context.Background(), &storage.Record{
			SourceFile:     source,
			ExtractionTime: base.Add(time.Duration(i) * time.Hour),
			TotalEmails:    1,
			Emails:         []extract.Entry{{Email: "a@b.co", Company: "B"}},
		})
		require.NoError(t, err)
	}

	s := NewServer("test", store, 20, "/mcp")

	result, err := s.handleListExtractions(context.Background(), callRequest("list_extractions", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var parsed historyResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &parsed))
	assert.True(t, parsed.Success)
	require.Len(t, parsed.Extractions, 2)
	assert.Equal(t, "second.txt", parsed.Extractions[0].Source)
	assert.Equal(t, "first.txt", parsed.Extractions[1].Source)
}

func TestServerHandler(t *testing.T) {
	s := NewServer("test", storage.NewMemoryStorage(), 20, "/mcp")
	assert.NotNil(t, s.Handler())
}
