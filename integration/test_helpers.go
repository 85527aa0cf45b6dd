package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dgellow/mailsift/internal"
	"github.com/dgellow/mailsift/internal/config"
)

// startApp builds a fully wired application and serves its handler over
// httptest, so every scenario exercises the real route table and middleware
// chain. The base configuration keeps everything in memory; scenarios adjust
// it through mutate functions.
func startApp(t *testing.T, mutate ...func(*config.Config)) *httptest.Server {
	t.Helper()

	cfg := config.Default()
	cfg.Storage.Type = config.StorageTypeMemory
	cfg.MCP.Enabled = true
	cfg.MCP.BasePath = config.DefaultMCPBasePath
	for _, fn := range mutate {
		fn(&cfg)
	}

	app, err := internal.NewMailSift(context.Background(), cfg, "test")
	require.NoError(t, err, "Failed to build application")

	ts := httptest.NewServer(app.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// uploadFile posts content as a multipart upload to /api/extract.
func uploadFile(t *testing.T, baseURL, filename, content string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(baseURL+"/api/extract", mw.FormDataContentType(), &buf)
	require.NoError(t, err, "Upload request failed")
	return resp
}

// postJSON posts body as JSON to url.
func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err, "Request failed")
	return resp
}

// decodeBody decodes a JSON response body into a generic map and closes it.
func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out), "Failed to decode response body")
	return out
}

// readBody drains the response body into a string and closes it.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

// stringSlice converts the []any that encoding/json produces for a JSON
// array back into the string slice the assertions want to compare against.
func stringSlice(t *testing.T, v any) []string {
	t.Helper()

	raw, ok := v.([]any)
	require.True(t, ok, "Expected a JSON array, got %T", v)
	out := make([]string, len(raw))
	for i, item := range raw {
		s, ok := item.(string)
		require.True(t, ok, "Expected a string element, got %T", item)
		out[i] = s
	}
	return out
}
