package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgellow/mailsift/internal/config"
)

func TestHistoryFlowScenarios(t *testing.T) {
	t.Run("ListsRunsNewestFirst", func(t *testing.T) {
		ts := startApp(t)

		resp := uploadFile(t, ts.URL, "first.txt", "one@example.com")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		// Artifact names carry second-resolution timestamps, so give the
		// second run a distinct second
		time.Sleep(1100 * time.Millisecond)

		resp = uploadFile(t, ts.URL, "second.txt", "two@example.com and three@example.com")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		listResp, err := http.Get(ts.URL + "/api/history")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, listResp.StatusCode)

		body := decodeBody(t, listResp)
		assert.Equal(t, true, body["success"])

		extractions, ok := body["extractions"].([]any)
		require.True(t, ok, "Expected extractions array")
		require.Len(t, extractions, 2)

		newest, ok := extractions[0].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "second.txt", newest["source"])
		assert.EqualValues(t, 2, newest["total"])
		assert.NotEmpty(t, newest["filename"])
		assert.NotEmpty(t, newest["time"])

		oldest, ok := extractions[1].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "first.txt", oldest["source"])
	})

	t.Run("HonorsHistoryLimit", func(t *testing.T) {
		ts := startApp(t, func(cfg *config.Config) {
			cfg.Extract.HistoryLimit = 1
		})

		for _, name := range []string{"a.txt", "b.txt"} {
			resp := uploadFile(t, ts.URL, name, "someone@example.com")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			resp.Body.Close()
		}

		listResp, err := http.Get(ts.URL + "/api/history")
		require.NoError(t, err)
		body := decodeBody(t, listResp)

		extractions, ok := body["extractions"].([]any)
		require.True(t, ok)
		assert.Len(t, extractions, 1, "History must stop at the configured limit")
	})

	t.Run("ClearRemovesEverything", func(t *testing.T) {
		ts := startApp(t)

		for _, name := range []string{"a.txt", "b.txt"} {
			resp := uploadFile(t, ts.URL, name, "someone@example.com")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			resp.Body.Close()
		}

		clearResp, err := http.Post(ts.URL+"/api/clear-history", "application/json", nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, clearResp.StatusCode)

		body := decodeBody(t, clearResp)
		assert.Equal(t, true, body["success"])
		// Each run stores a JSON and a CSV artifact
		assert.EqualValues(t, 4, body["removed"])

		listResp, err := http.Get(ts.URL + "/api/history")
		require.NoError(t, err)
		listBody := decodeBody(t, listResp)
		extractions, ok := listBody["extractions"].([]any)
		require.True(t, ok)
		assert.Empty(t, extractions)
	})

	t.Run("FilesystemHistorySurvivesRestart", func(t *testing.T) {
		dir := t.TempDir()
		onDisk := func(cfg *config.Config) {
			cfg.Storage.Type = config.StorageTypeFilesystem
			cfg.Storage.OutputDir = dir
		}

		first := startApp(t, onDisk)
		resp := uploadFile(t, first.URL, "durable.txt", "keep@example.com")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		files, ok := decodeBody(t, resp)["files"].(map[string]any)
		require.True(t, ok)
		first.Close()

		// A fresh instance over the same directory sees the earlier run
		second := startApp(t, onDisk)
		listResp, err := http.Get(second.URL + "/api/history")
		require.NoError(t, err)
		body := decodeBody(t, listResp)

		extractions, ok := body["extractions"].([]any)
		require.True(t, ok)
		require.Len(t, extractions, 1)
		entry, ok := extractions[0].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "durable.txt", entry["source"])

		csvName, _ := files["csv"].(string)
		require.NotEmpty(t, csvName)
		dlResp, err := http.Get(second.URL + "/api/download/" + csvName)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, dlResp.StatusCode)
		assert.Contains(t, readBody(t, dlResp), "keep@example.com")
	})
}
