package integration

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgellow/mailsift/internal/config"
)

func TestSecurityScenarios(t *testing.T) {
	t.Run("PathTraversalDownload", func(t *testing.T) {
		ts := startApp(t)

		// Encoded slashes reach the handler as one path segment
		resp, err := http.Get(ts.URL + "/api/download/..%2F..%2Fetc%2Fpasswd")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.JSONEq(t, `{"success": false, "error": "File not found"}`, readBody(t, resp))

		// Literal dot segments are cleaned by the mux and land on the
		// catch-all, never on the filesystem
		resp, err = http.Get(ts.URL + "/api/download/../../etc/passwd")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("OversizedUploadRejected", func(t *testing.T) {
		ts := startApp(t, func(cfg *config.Config) {
			cfg.Server.MaxUploadBytes = 1 << 20
		})

		resp := uploadFile(t, ts.URL, "big.txt", strings.Repeat("x", (1<<20)+2048))
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
		assert.JSONEq(t, `{"success": false, "error": "File too large. Maximum size is 1MB."}`, readBody(t, resp))

		// The JSON endpoint enforces the same cap
		textResp := postJSON(t, ts.URL+"/api/extract-text", map[string]any{
			"text": strings.Repeat("y", (1<<20)+2048),
		})
		assert.Equal(t, http.StatusRequestEntityTooLarge, textResp.StatusCode)
		textResp.Body.Close()
	})

	t.Run("MethodMisuse", func(t *testing.T) {
		ts := startApp(t)

		cases := []struct {
			method string
			path   string
		}{
			{http.MethodGet, "/api/extract"},
			{http.MethodGet, "/api/extract-text"},
			{http.MethodGet, "/api/download-csv"},
			{http.MethodGet, "/api/clear-history"},
			{http.MethodPost, "/api/history"},
		}
		for _, tc := range cases {
			req, err := http.NewRequest(tc.method, ts.URL+tc.path, nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			assert.Equalf(t, http.StatusMethodNotAllowed, resp.StatusCode,
				"%s %s should be rejected", tc.method, tc.path)
			resp.Body.Close()
		}
	})

	t.Run("UnknownPathGetsJSONEnvelope", func(t *testing.T) {
		ts := startApp(t)

		resp, err := http.Get(ts.URL + "/nonexistent")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.JSONEq(t, `{"success": false, "error": "Not found"}`, readBody(t, resp))
	})

	t.Run("CORSHonorsAllowlist", func(t *testing.T) {
		ts := startApp(t, func(cfg *config.Config) {
			cfg.Server.AllowedOrigins = []string{"https://app.example.com"}
		})

		req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/history", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "https://app.example.com")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
		resp.Body.Close()

		req, err = http.NewRequest(http.MethodGet, ts.URL+"/api/history", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "https://evil.example.com")
		resp, err = http.DefaultClient.Do(req)
		require.NoError(t, err)
		assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"),
			"Unlisted origins must not be allowed")
		resp.Body.Close()

		// Preflight terminates in the middleware
		req, err = http.NewRequest(http.MethodOptions, ts.URL+"/api/extract", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		resp, err = http.DefaultClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
		resp.Body.Close()
	})
}
